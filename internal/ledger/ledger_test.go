package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

func TestValidatePaymentRules(t *testing.T) {
	customer := domain.Customer{ID: 4, Name: "Asha", DueBalance: decimal.NewFromInt(700)}

	if _, err := ValidatePayment(customer, decimal.Zero, "cash"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ValidatePayment(customer, decimal.NewFromInt(800), "cash"); !errors.Is(err, ErrExceedsDue) {
		t.Fatalf("expected ErrExceedsDue, got %v", err)
	}
	if _, err := ValidatePayment(customer, decimal.NewFromInt(100), "cheque"); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}

	req, err := ValidatePayment(customer, decimal.NewFromInt(700), "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.CustomerID != 4 || req.PaymentMethod != domain.PaymentMethodCash || !req.Amount.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected request: %+v", req)
	}

	customer.DueBalance = decimal.Zero
	if _, err := ValidatePayment(customer, decimal.NewFromInt(1), "cash"); !errors.Is(err, ErrNoDue) {
		t.Fatalf("expected ErrNoDue, got %v", err)
	}
}

func TestFirstUnpaidSale(t *testing.T) {
	sales := []domain.Sale{
		{ID: 1, DueAmount: decimal.Zero},
		{ID: 2, DueAmount: decimal.NewFromInt(50)},
		{ID: 3, DueAmount: decimal.NewFromInt(20)},
	}
	sale, err := FirstUnpaidSale(sales)
	if err != nil || sale.ID != 2 {
		t.Fatalf("expected sale 2, got %d (%v)", sale.ID, err)
	}
	if !OutstandingDue(sales).Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected outstanding due %s", OutstandingDue(sales))
	}
	if _, err := FirstUnpaidSale(sales[:1]); !errors.Is(err, ErrNoUnpaidSale) {
		t.Fatalf("expected ErrNoUnpaidSale, got %v", err)
	}
}

func TestFilterHistoryByKindAndSearch(t *testing.T) {
	history := []domain.Payment{
		{ID: 1, Amount: decimal.NewFromInt(500), PaymentMethod: "cash", ReceiptNo: "RCPT-0001"},
		{ID: 2, Amount: decimal.NewFromInt(-200), PaymentMethod: "upi", ReceiptNo: "RCPT-0002", Invoice: &domain.Invoice{InvoiceNumber: "RF-0009"}},
		{ID: 3, Amount: decimal.NewFromInt(300), PaymentMethod: "card", ReceiptNo: "RCPT-0003"},
	}

	if got := FilterHistory(history, Filter{Kind: KindRefund}); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected refunds: %+v", got)
	}
	if got := FilterHistory(history, Filter{Kind: KindPayment}); len(got) != 2 {
		t.Fatalf("unexpected payments: %+v", got)
	}
	if got := FilterHistory(history, Filter{Search: "rf-0009"}); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected invoice search to match, got %+v", got)
	}
	if got := FilterHistory(history, Filter{Kind: KindPayment, Search: "CARD"}); len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected method search to match, got %+v", got)
	}

	totals := HistoryTotals(history)
	if !totals.Payments.Equal(decimal.NewFromInt(800)) || !totals.Refunds.Equal(decimal.NewFromInt(200)) || !totals.Net.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestFilterHistoryZeroAmountIsNeitherPaymentNorRefund(t *testing.T) {
	history := []domain.Payment{
		{ID: 1, Amount: decimal.NewFromInt(250), PaymentMethod: "cash", ReceiptNo: "RCPT-0001"},
		{ID: 2, Amount: decimal.Zero, PaymentMethod: "cash", ReceiptNo: "RCPT-0002"},
		{ID: 3, Amount: decimal.NewFromInt(-50), PaymentMethod: "cash", ReceiptNo: "RCPT-0003"},
	}

	if got := FilterHistory(history, Filter{Kind: KindPayment}); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only the positive entry as a payment, got %+v", got)
	}
	if got := FilterHistory(history, Filter{Kind: KindRefund}); len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected only the negative entry as a refund, got %+v", got)
	}
	if got := FilterHistory(history, Filter{Kind: KindAll}); len(got) != 3 {
		t.Fatalf("expected all entries without a kind filter, got %+v", got)
	}
}

func TestFilterHistorySearchesAmount(t *testing.T) {
	history := []domain.Payment{
		{ID: 1, Amount: decimal.NewFromInt(500), PaymentMethod: "cash", ReceiptNo: "RCPT-0001"},
		{ID: 2, Amount: decimal.NewFromInt(-275), PaymentMethod: "upi", ReceiptNo: "RCPT-0002"},
	}

	if got := FilterHistory(history, Filter{Search: "500.00"}); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected amount search to match the payment, got %+v", got)
	}
	if got := FilterHistory(history, Filter{Search: "275"}); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected refund amount to match without its sign, got %+v", got)
	}
}
