package billing

import (
	"errors"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("not enough stock")
	ErrUnknownLine       = errors.New("product not in cart")
)

// Line is one product on the bill. Stock is the stock known when the line was
// built and is only used for the soft quantity check.
type Line struct {
	ProductID    int64
	Code         string
	Name         string
	Size         string
	Stock        int
	MRP          decimal.Decimal
	Quantity     int
	SellingPrice decimal.Decimal
}

func (l Line) Total() decimal.Decimal {
	return l.SellingPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Discount is the per-line markdown from MRP, zero when sold at or above MRP.
func (l Line) Discount() decimal.Decimal {
	diff := l.MRP.Sub(l.SellingPrice)
	if !diff.IsPositive() {
		return decimal.Zero
	}
	return diff.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	lines    []Line
	discount decimal.Decimal
}

func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Line(productID int64) (Line, bool) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return Line{}, false
	}
	return c.lines[idx], true
}

// AddToCart adds one unit of product. A product already on the bill is
// incremented only while the new quantity stays within its known stock.
func (c *Cart) AddToCart(product domain.Product) error {
	if idx := c.indexOf(product.ID); idx >= 0 {
		line := c.lines[idx]
		if line.Quantity+1 > product.CurrentStock {
			return ErrInsufficientStock
		}
		line.Quantity++
		line.Stock = product.CurrentStock
		c.lines[idx] = line
		return nil
	}

	if product.CurrentStock <= 0 {
		return ErrOutOfStock
	}
	c.lines = append(c.lines, Line{
		ProductID:    product.ID,
		Code:         product.Code,
		Name:         product.Name,
		Size:         product.Size,
		Stock:        product.CurrentStock,
		MRP:          product.SellPrice,
		Quantity:     1,
		SellingPrice: product.SellPrice,
	})
	return nil
}

// UpdateQuantity sets a line quantity. A quantity above the known stock is
// clamped to it, and a line left at zero or below is removed. Unknown ids are
// ignored.
func (c *Cart) UpdateQuantity(productID int64, qty int) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return
	}
	if stock := c.lines[idx].Stock; qty > stock {
		qty = stock
	}
	if qty <= 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return
	}
	c.lines[idx].Quantity = qty
}

// UpdateSellingPrice overrides the line price; negative prices clamp to zero.
func (c *Cart) UpdateSellingPrice(productID int64, price decimal.Decimal) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrUnknownLine
	}
	c.lines[idx].SellingPrice = decimal.Max(decimal.Zero, price)
	return nil
}

func (c *Cart) Remove(productID int64) {
	c.UpdateQuantity(productID, 0)
}

// RefreshStock updates the known stock of every line from a fresh product list.
// Quantities are not changed; the backend remains authoritative.
func (c *Cart) RefreshStock(products []domain.Product) {
	stock := make(map[int64]int, len(products))
	for _, p := range products {
		stock[p.ID] = p.CurrentStock
	}
	for i, line := range c.lines {
		if s, ok := stock[line.ProductID]; ok {
			c.lines[i].Stock = s
		}
	}
}

// SetDiscount sets the flat bill-level discount.
func (c *Cart) SetDiscount(discount decimal.Decimal) {
	c.discount = decimal.Max(decimal.Zero, discount)
}

func (c *Cart) Discount() decimal.Decimal {
	return c.discount
}

func (c *Cart) Clear() {
	c.lines = nil
	c.discount = decimal.Zero
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Total())
	}
	return total
}

func (c *Cart) FinalAmount() decimal.Decimal {
	return decimal.Max(decimal.Zero, c.Subtotal().Sub(c.discount))
}

// ItemDiscount sums the per-line markdowns from MRP.
func (c *Cart) ItemDiscount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Discount())
	}
	return total
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

func (c *Cart) indexOf(productID int64) int {
	for i, line := range c.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
