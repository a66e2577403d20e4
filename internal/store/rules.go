package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

const DefaultSupplier = "Unnamed Supplier"

// PaymentMethod normalises a method name, defaulting to cash.
func PaymentMethod(method string) (string, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return domain.PaymentMethodCash, nil
	}
	if !domain.IsPaymentMethod(method) {
		return "", fmt.Errorf("%w: unsupported payment method %s", ErrInvalidTransaction, method)
	}
	return method, nil
}

// RefundMethod returns the normalised refund method of a return request. An
// empty result means the refund settles against the sale's due.
func RefundMethod(req domain.ReturnRequest) (string, error) {
	if req.RefundMethod == nil {
		return "", nil
	}
	method := strings.ToLower(strings.TrimSpace(*req.RefundMethod))
	if method != "" && !domain.IsPaymentMethod(method) {
		return "", fmt.Errorf("%w: unsupported refund method %s", ErrInvalidTransaction, method)
	}
	return method, nil
}

// SaleTotals checks the money side of a sale request against its subtotal.
// Total is never negative and any unpaid balance needs a customer.
func SaleTotals(req domain.SaleRequest, subtotal decimal.Decimal) (total, due decimal.Decimal, err error) {
	if req.Discount.IsNegative() {
		return total, due, fmt.Errorf("%w: discount must not be negative", ErrInvalidTransaction)
	}
	total = decimal.Max(decimal.Zero, subtotal.Sub(req.Discount))
	paid := req.PaidAmount
	if paid.IsNegative() || paid.GreaterThan(total) {
		return total, due, fmt.Errorf("%w: paid amount must be between 0 and the bill total", ErrInvalidTransaction)
	}
	due = total.Sub(paid)
	if due.IsPositive() && req.CustomerID == nil {
		return total, due, fmt.Errorf("%w: a customer is required for a credit sale", ErrInvalidTransaction)
	}
	return total, due, nil
}

// SplitRefund decides how a refund leaves the sale. With a method the money
// is paid out of what was paid on the bill; without one it is first taken off
// the due and only the rest is paid out in cash. Either way paid + due stays
// equal to total - refunds.
func SplitRefund(refund, paid, due decimal.Decimal, method string) (paidOut, adjusted decimal.Decimal) {
	if method != "" {
		paidOut = decimal.Min(refund, paid)
		return paidOut, refund.Sub(paidOut)
	}
	adjusted = decimal.Min(refund, due)
	return refund.Sub(adjusted), adjusted
}

// ValidatePurchaseLine checks the parts of a purchase line that do not depend
// on stored state. i is zero-based.
func ValidatePurchaseLine(i int, item domain.PurchaseItemInput) error {
	if item.Quantity < 1 {
		return fmt.Errorf("%w: line %d: quantity must be at least 1", ErrInvalidTransaction, i+1)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: line %d: unit price must not be negative", ErrInvalidTransaction, i+1)
	}
	if (item.ProductID == nil) == (item.Product == nil) {
		return fmt.Errorf("%w: line %d: choose an existing product or describe a new one", ErrInvalidTransaction, i+1)
	}
	if np := item.Product; np != nil {
		if strings.TrimSpace(np.Code) == "" || strings.TrimSpace(np.Name) == "" {
			return fmt.Errorf("%w: line %d: new product needs a code and a name", ErrInvalidTransaction, i+1)
		}
		if np.SellPrice.IsNegative() {
			return fmt.Errorf("%w: line %d: sell price must not be negative", ErrInvalidTransaction, i+1)
		}
	}
	return nil
}

// NewProduct is the product registered by a new-product purchase line, before
// the line quantity is stocked in.
func NewProduct(item domain.PurchaseItemInput) domain.Product {
	np := item.Product
	category := strings.TrimSpace(np.Category)
	if category == "" {
		category = "General"
	}
	return domain.Product{
		Code:      strings.ToUpper(strings.TrimSpace(np.Code)),
		Name:      strings.TrimSpace(np.Name),
		Category:  category,
		Gender:    domain.NormalizeGender(np.Gender),
		Size:      strings.TrimSpace(np.Size),
		Color:     strings.TrimSpace(np.Color),
		BuyPrice:  item.UnitPrice,
		SellPrice: np.SellPrice,
	}
}

// SummarizePurchase fills the purchase totals from its lines.
func SummarizePurchase(p *domain.Purchase) {
	p.ItemsCount = len(p.Items)
	p.TotalItems = 0
	p.TotalAmount = decimal.Zero
	for _, item := range p.Items {
		p.TotalItems += item.Quantity
		p.TotalAmount = p.TotalAmount.Add(item.LineTotal)
	}
}

func SupplierName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return DefaultSupplier
	}
	return name
}

// PurchaseDate accepts a calendar date or an RFC 3339 timestamp and defaults
// to today.
func PurchaseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().Format(time.DateOnly), nil
	}
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d.Format(time.DateOnly), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.Format(time.DateOnly), nil
	}
	return "", fmt.Errorf("%w: invalid purchase date %q", ErrInvalidTransaction, raw)
}

// ProductFields validates and trims a product create/update body.
func ProductFields(in domain.ProductInput) (domain.Product, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if code == "" || name == "" || category == "" {
		return domain.Product{}, fmt.Errorf("%w: code, name and category are required", ErrInvalidTransaction)
	}
	if in.BuyPrice.IsNegative() || in.SellPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: prices must not be negative", ErrInvalidTransaction)
	}
	if in.OpeningStock != nil && *in.OpeningStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: opening stock must not be negative", ErrInvalidTransaction)
	}
	return domain.Product{
		Code:      code,
		Name:      name,
		Category:  category,
		Gender:    domain.NormalizeGender(in.Gender),
		Size:      trimmed(in.Size),
		Color:     trimmed(in.Color),
		BuyPrice:  in.BuyPrice,
		SellPrice: in.SellPrice,
	}, nil
}

// CustomerFields validates and trims a customer create/update body.
func CustomerFields(in domain.CustomerInput) (domain.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", ErrInvalidTransaction)
	}
	return domain.Customer{
		Name:       name,
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.TrimSpace(in.Email),
		Address:    strings.TrimSpace(in.Address),
		DueBalance: decimal.Zero,
	}, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
