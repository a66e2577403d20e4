package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

const (
	KindAll     = "all"
	KindPayment = "payment"
	KindRefund  = "refund"
)

type Filter struct {
	Kind   string
	Search string
}

// IsRefund reports whether a history entry is money paid back to the customer.
func IsRefund(p domain.Payment) bool {
	return p.Amount.IsNegative()
}

// IsPayment reports whether a history entry is money received. Zero-amount
// entries are neither payments nor refunds.
func IsPayment(p domain.Payment) bool {
	return p.Amount.IsPositive()
}

// FilterHistory keeps the entries matching the kind and the search text. The
// search looks at receipt number, payment method, invoice number and amount.
func FilterHistory(history []domain.Payment, f Filter) []domain.Payment {
	kind := strings.ToLower(strings.TrimSpace(f.Kind))
	query := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.Payment, 0, len(history))
	for _, p := range history {
		switch kind {
		case KindPayment:
			if !IsPayment(p) {
				continue
			}
		case KindRefund:
			if !IsRefund(p) {
				continue
			}
		}
		if query != "" && !matches(p, query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p domain.Payment, query string) bool {
	fields := []string{p.ReceiptNo, p.PaymentMethod, p.Amount.StringFixed(2), p.Amount.Abs().StringFixed(2)}
	if p.Invoice != nil {
		fields = append(fields, p.Invoice.InvoiceNumber)
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

type Totals struct {
	Payments decimal.Decimal
	Refunds  decimal.Decimal
	Net      decimal.Decimal
}

// HistoryTotals splits history into received payments and refunds paid out.
// Refunds are reported as a positive amount.
func HistoryTotals(history []domain.Payment) Totals {
	t := Totals{Payments: decimal.Zero, Refunds: decimal.Zero}
	for _, p := range history {
		switch {
		case IsRefund(p):
			t.Refunds = t.Refunds.Add(p.Amount.Neg())
		case IsPayment(p):
			t.Payments = t.Payments.Add(p.Amount)
		}
	}
	t.Net = t.Payments.Sub(t.Refunds)
	return t
}
