package returns

import (
	"strings"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

const (
	KindAdjusted = "adjusted"
	KindRefunded = "refunded"
)

// Settlement describes how a recorded return was paid back.
type Settlement struct {
	Kind   string
	Method string
	Amount decimal.Decimal
	Label  string
}

func Settle(ret domain.SaleReturn) Settlement {
	if ret.Adjusted() {
		return Settlement{Kind: KindAdjusted, Amount: ret.RefundAmount, Label: "Adjusted against due"}
	}
	method := strings.ToLower(strings.TrimSpace(*ret.RefundMethod))
	return Settlement{
		Kind:   KindRefunded,
		Method: method,
		Amount: ret.RefundAmount,
		Label:  "Refunded via " + methodLabel(method),
	}
}

// RefundTotal sums the refunds recorded against sale, preferring the
// backend's own figure when it is present.
func RefundTotal(sale domain.Sale) decimal.Decimal {
	if !sale.RefundTotal.IsZero() {
		return sale.RefundTotal
	}
	total := decimal.Zero
	for _, ret := range sale.Returns {
		total = total.Add(ret.RefundAmount)
	}
	return total
}

// Summary splits the refunds of a sale into paid-out and adjusted amounts.
func Summary(sale domain.Sale) (refunded, adjusted decimal.Decimal) {
	refunded, adjusted = decimal.Zero, decimal.Zero
	for _, ret := range sale.Returns {
		if ret.Adjusted() {
			adjusted = adjusted.Add(ret.RefundAmount)
		} else {
			refunded = refunded.Add(ret.RefundAmount)
		}
	}
	return refunded, adjusted
}

func methodLabel(method string) string {
	switch method {
	case domain.PaymentMethodUPI:
		return "UPI"
	case domain.PaymentMethodCard:
		return "Card"
	case domain.PaymentMethodBank:
		return "Bank"
	case domain.PaymentMethodCash:
		return "Cash"
	default:
		return method
	}
}
