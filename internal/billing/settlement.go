package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

var (
	ErrCustomerRequired = errors.New("select a customer for a credit sale")
	ErrOverpayment      = errors.New("paid amount exceeds bill total")
	ErrInvalidAmount    = errors.New("invalid paid amount")
	ErrInvalidMethod    = errors.New("unsupported payment method")
)

// Settlement is how a bill is split between what is paid now and what goes
// onto the customer's due.
type Settlement struct {
	Final            decimal.Decimal
	Paid             decimal.Decimal
	Due              decimal.Decimal
	Status           string
	CustomerRequired bool
}

// ResolvePayment applies the credit-sale gate: any unpaid balance needs a
// named customer, and paying more than the bill is rejected.
func ResolvePayment(final, paidNow decimal.Decimal, customerID *int64) (Settlement, error) {
	if paidNow.IsNegative() {
		return Settlement{}, ErrInvalidAmount
	}
	if paidNow.GreaterThan(final) {
		return Settlement{}, ErrOverpayment
	}

	due := final.Sub(paidNow)
	settlement := Settlement{
		Final:            final,
		Paid:             paidNow,
		Due:              due,
		Status:           domain.PaymentStatusFor(final, paidNow),
		CustomerRequired: due.IsPositive(),
	}
	if settlement.CustomerRequired && customerID == nil {
		return settlement, ErrCustomerRequired
	}
	return settlement, nil
}

type CheckoutOptions struct {
	Date          time.Time
	CustomerID    *int64
	PaidNow       decimal.Decimal
	PaymentMethod string
}

// Checkout validates the cart and builds the sale creation request. Nothing is
// sent when it returns an error.
func Checkout(cart *Cart, opts CheckoutOptions) (domain.SaleRequest, Settlement, error) {
	if cart == nil {
		return domain.SaleRequest{}, Settlement{}, ErrEmptyCart
	}
	lines := make([]Line, 0, len(cart.lines))
	for _, line := range cart.lines {
		if line.Quantity >= 1 {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return domain.SaleRequest{}, Settlement{}, ErrEmptyCart
	}

	settlement, err := ResolvePayment(cart.FinalAmount(), opts.PaidNow, opts.CustomerID)
	if err != nil {
		return domain.SaleRequest{}, settlement, err
	}

	method := ""
	if settlement.Paid.IsPositive() {
		method = strings.ToLower(strings.TrimSpace(opts.PaymentMethod))
		if method == "" {
			method = domain.PaymentMethodCash
		}
		if !domain.IsPaymentMethod(method) {
			return domain.SaleRequest{}, settlement, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
		}
	}

	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	items := make([]domain.SaleItemInput, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.SaleItemInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.SellingPrice,
		})
	}

	return domain.SaleRequest{
		SaleDate:      date.UTC(),
		CustomerID:    opts.CustomerID,
		Discount:      cart.Discount(),
		PaidAmount:    settlement.Paid,
		PaymentMethod: method,
		Items:         items,
	}, settlement, nil
}

// Reconciliation mirrors the backend ledger identity
// paid + due == total - refunds for display.
type Reconciliation struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Gap      decimal.Decimal
	Balanced bool
}

func Reconcile(sale domain.Sale) Reconciliation {
	refunds := sale.RefundTotal
	if refunds.IsZero() {
		for _, ret := range sale.Returns {
			refunds = refunds.Add(ret.RefundAmount)
		}
	}
	expected := sale.Total.Sub(refunds)
	actual := sale.PaidAmount.Add(sale.DueAmount)
	gap := actual.Sub(expected)
	return Reconciliation{
		Expected: expected,
		Actual:   actual,
		Gap:      gap,
		Balanced: gap.IsZero(),
	}
}
