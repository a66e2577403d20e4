package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

var (
	ErrNoDue         = errors.New("customer has no due balance")
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrExceedsDue    = errors.New("amount exceeds due balance")
	ErrInvalidMethod = errors.New("unsupported payment method")
	ErrNoUnpaidSale  = errors.New("no unpaid sale found for customer")
)

// ValidatePayment checks a due collection against the customer's balance and
// builds the request. Allocation across sales is left to the backend.
func ValidatePayment(customer domain.Customer, amount decimal.Decimal, method string) (domain.PaymentRequest, error) {
	if !customer.DueBalance.IsPositive() {
		return domain.PaymentRequest{}, ErrNoDue
	}
	if !amount.IsPositive() {
		return domain.PaymentRequest{}, ErrInvalidAmount
	}
	if amount.GreaterThan(customer.DueBalance) {
		return domain.PaymentRequest{}, fmt.Errorf("%w (due %s)", ErrExceedsDue, customer.DueBalance.StringFixed(2))
	}

	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = domain.PaymentMethodCash
	}
	if !domain.IsPaymentMethod(method) {
		return domain.PaymentRequest{}, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	return domain.PaymentRequest{
		CustomerID:    customer.ID,
		Amount:        amount,
		PaymentMethod: method,
	}, nil
}

// FirstUnpaidSale returns the first sale still carrying a due amount.
func FirstUnpaidSale(sales []domain.Sale) (domain.Sale, error) {
	for _, sale := range sales {
		if sale.DueAmount.IsPositive() {
			return sale, nil
		}
	}
	return domain.Sale{}, ErrNoUnpaidSale
}

// OutstandingDue sums due amounts across the given sales.
func OutstandingDue(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		if sale.DueAmount.IsPositive() {
			total = total.Add(sale.DueAmount)
		}
	}
	return total
}
