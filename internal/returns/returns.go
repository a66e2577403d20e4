package returns

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

var (
	ErrNotReturnable   = errors.New("all items of this sale are already returned")
	ErrNothingSelected = errors.New("select at least one item to return")
	ErrInvalidMethod   = errors.New("unsupported refund method")
)

// Line is one returnable sale item with the quantity the user picked.
type Line struct {
	SaleItemID   int64
	ProductID    int64
	Name         string
	Size         string
	SoldQty      int
	RemainingQty int
	UnitPrice    decimal.Decimal
	Quantity     int
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Form struct {
	SaleID int64
	lines  []Line
}

// Returnable reports whether any line of the sale still has quantity left to return.
func Returnable(sale domain.Sale) bool {
	for _, item := range sale.Items {
		if item.RemainingQty > 0 {
			return true
		}
	}
	return false
}

// NewForm starts a return for sale with every selected quantity at zero.
func NewForm(sale domain.Sale) (*Form, error) {
	if !Returnable(sale) {
		return nil, ErrNotReturnable
	}
	form := &Form{SaleID: sale.ID, lines: make([]Line, 0, len(sale.Items))}
	for _, item := range sale.Items {
		line := Line{
			SaleItemID:   item.ID,
			ProductID:    item.ProductID,
			SoldQty:      item.Quantity,
			RemainingQty: max(item.RemainingQty, 0),
			UnitPrice:    item.UnitPrice,
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.Size = item.Product.Size
		}
		form.lines = append(form.lines, line)
	}
	return form, nil
}

func (f *Form) Lines() []Line {
	out := make([]Line, len(f.lines))
	copy(out, f.lines)
	return out
}

// SetQuantity selects qty units of a line, clamped to [0, remaining].
func (f *Form) SetQuantity(saleItemID int64, qty int) {
	for i := range f.lines {
		if f.lines[i].SaleItemID != saleItemID {
			continue
		}
		f.lines[i].Quantity = min(max(qty, 0), f.lines[i].RemainingQty)
		return
	}
}

func (f *Form) RefundTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range f.lines {
		total = total.Add(line.Total())
	}
	return total
}

// Payload builds the return request. An empty method settles the refund
// against the customer's due instead of paying it out.
func (f *Form) Payload(refundMethod, reason string) (domain.ReturnRequest, error) {
	items := make([]domain.ReturnItemInput, 0, len(f.lines))
	for _, line := range f.lines {
		qty := min(max(line.Quantity, 0), line.RemainingQty)
		if qty == 0 {
			continue
		}
		items = append(items, domain.ReturnItemInput{SaleItemID: line.SaleItemID, Quantity: qty})
	}
	if len(items) == 0 {
		return domain.ReturnRequest{}, ErrNothingSelected
	}

	req := domain.ReturnRequest{Items: items, Reason: strings.TrimSpace(reason)}
	method := strings.ToLower(strings.TrimSpace(refundMethod))
	if method != "" {
		if !domain.IsPaymentMethod(method) {
			return domain.ReturnRequest{}, ErrInvalidMethod
		}
		req.RefundMethod = &method
	}
	return req, nil
}
