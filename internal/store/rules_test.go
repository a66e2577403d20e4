package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

func TestSaleTotals(t *testing.T) {
	customer := int64(1)
	req := domain.SaleRequest{Discount: decimal.NewFromInt(100), PaidAmount: decimal.NewFromInt(1200)}
	total, due, err := SaleTotals(req, decimal.NewFromInt(1300))
	if err != nil {
		t.Fatalf("sale totals: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(1200)) || !due.IsZero() {
		t.Fatalf("unexpected total=%s due=%s", total, due)
	}

	req.PaidAmount = decimal.NewFromInt(200)
	if _, _, err := SaleTotals(req, decimal.NewFromInt(1300)); !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("expected credit sale without customer to fail, got %v", err)
	}
	req.CustomerID = &customer
	if _, due, err = SaleTotals(req, decimal.NewFromInt(1300)); err != nil || !due.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected due 1000, got %s %v", due, err)
	}

	req.Discount = decimal.NewFromInt(2000)
	req.PaidAmount = decimal.Zero
	if total, _, err = SaleTotals(req, decimal.NewFromInt(1300)); err != nil || !total.IsZero() {
		t.Fatalf("expected total clamped at zero, got %s %v", total, err)
	}
	req.Discount = decimal.NewFromInt(-1)
	if _, _, err := SaleTotals(req, decimal.NewFromInt(1300)); !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("expected negative discount to fail, got %v", err)
	}
}

func TestSplitRefund(t *testing.T) {
	d := decimal.NewFromInt
	cases := []struct {
		name              string
		refund, paid, due decimal.Decimal
		method            string
		paidOut, adjusted decimal.Decimal
	}{
		{"cash refund of paid bill", d(1000), d(2200), d(0), "cash", d(1000), d(0)},
		{"cash refund beyond paid", d(500), d(300), d(700), "upi", d(300), d(200)},
		{"adjust against due", d(500), d(400), d(1000), "", d(0), d(500)},
		{"adjust more than due", d(500), d(400), d(200), "", d(300), d(200)},
	}
	for _, tc := range cases {
		paidOut, adjusted := SplitRefund(tc.refund, tc.paid, tc.due, tc.method)
		if !paidOut.Equal(tc.paidOut) || !adjusted.Equal(tc.adjusted) {
			t.Fatalf("%s: got paidOut=%s adjusted=%s", tc.name, paidOut, adjusted)
		}
		if !paidOut.Add(adjusted).Equal(tc.refund) {
			t.Fatalf("%s: split does not add up to the refund", tc.name)
		}
	}
}

func TestPaymentAndRefundMethods(t *testing.T) {
	if m, err := PaymentMethod(" "); err != nil || m != domain.PaymentMethodCash {
		t.Fatalf("expected cash default, got %q %v", m, err)
	}
	if m, err := PaymentMethod("UPI"); err != nil || m != domain.PaymentMethodUPI {
		t.Fatalf("expected upi, got %q %v", m, err)
	}
	if _, err := PaymentMethod("cheque"); !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("expected unsupported method to fail, got %v", err)
	}

	if m, err := RefundMethod(domain.ReturnRequest{}); err != nil || m != "" {
		t.Fatalf("expected adjustment without method, got %q %v", m, err)
	}
	card := " Card "
	if m, err := RefundMethod(domain.ReturnRequest{RefundMethod: &card}); err != nil || m != domain.PaymentMethodCard {
		t.Fatalf("expected card, got %q %v", m, err)
	}
}

func TestPurchaseDate(t *testing.T) {
	if d, err := PurchaseDate("2026-10-18"); err != nil || d != "2026-10-18" {
		t.Fatalf("unexpected date %q %v", d, err)
	}
	if d, err := PurchaseDate("2026-10-18T10:30:00Z"); err != nil || d != "2026-10-18" {
		t.Fatalf("unexpected date from timestamp %q %v", d, err)
	}
	if d, err := PurchaseDate(""); err != nil || d != time.Now().Format(time.DateOnly) {
		t.Fatalf("expected today, got %q %v", d, err)
	}
	if _, err := PurchaseDate("18/10/2026"); !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("expected bad date to fail, got %v", err)
	}
}

func TestValidatePurchaseLine(t *testing.T) {
	id := int64(3)
	bad := []domain.PurchaseItemInput{
		{ProductID: &id, Quantity: 0},
		{ProductID: &id, Quantity: 1, UnitPrice: decimal.NewFromInt(-1)},
		{Quantity: 1},
		{ProductID: &id, Product: &domain.NewProductInput{Code: "X", Name: "Y"}, Quantity: 1},
		{Product: &domain.NewProductInput{Code: " ", Name: "Y"}, Quantity: 1},
	}
	for i, item := range bad {
		if err := ValidatePurchaseLine(i, item); !errors.Is(err, ErrInvalidTransaction) {
			t.Fatalf("line %d: expected rejection, got %v", i, err)
		}
	}

	item := domain.PurchaseItemInput{
		Product:   &domain.NewProductInput{Code: " sc-wht ", Name: "Scarf", SellPrice: decimal.NewFromInt(249)},
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(90),
	}
	if err := ValidatePurchaseLine(0, item); err != nil {
		t.Fatalf("expected valid line, got %v", err)
	}
	p := NewProduct(item)
	if p.Code != "SC-WHT" || p.Category != "General" || !p.BuyPrice.Equal(decimal.NewFromInt(90)) || p.CurrentStock != 0 {
		t.Fatalf("unexpected new product %+v", p)
	}
}
