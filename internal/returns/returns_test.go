package returns

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

func saleWithItems(items ...domain.SaleItem) domain.Sale {
	return domain.Sale{ID: 11, Items: items}
}

func TestRefundScenario(t *testing.T) {
	sale := saleWithItems(domain.SaleItem{ID: 21, ProductID: 3, Quantity: 2, RemainingQty: 2, UnitPrice: decimal.NewFromInt(500)})

	form, err := NewForm(sale)
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	form.SetQuantity(21, 2)

	if !form.RefundTotal().Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected refund total 1000, got %s", form.RefundTotal())
	}
	req, err := form.Payload("", "size issue")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(req.Items) != 1 || req.Items[0].SaleItemID != 21 || req.Items[0].Quantity != 2 {
		t.Fatalf("unexpected payload items: %+v", req.Items)
	}
	if req.RefundMethod != nil {
		t.Fatalf("expected method to be omitted for an adjustment")
	}
}

func TestSetQuantityClampsToRemaining(t *testing.T) {
	sale := saleWithItems(
		domain.SaleItem{ID: 1, Quantity: 3, RemainingQty: 1, UnitPrice: decimal.NewFromInt(200)},
		domain.SaleItem{ID: 2, Quantity: 2, RemainingQty: 2, UnitPrice: decimal.NewFromInt(150)},
	)
	form, err := NewForm(sale)
	if err != nil {
		t.Fatalf("new form: %v", err)
	}

	form.SetQuantity(1, 5)
	form.SetQuantity(2, -2)
	lines := form.Lines()
	if lines[0].Quantity != 1 || lines[1].Quantity != 0 {
		t.Fatalf("unexpected quantities: %+v", lines)
	}
}

func TestPayloadKeepsOnlySelectedLines(t *testing.T) {
	sale := saleWithItems(
		domain.SaleItem{ID: 1, Quantity: 1, RemainingQty: 1, UnitPrice: decimal.NewFromInt(200)},
		domain.SaleItem{ID: 2, Quantity: 2, RemainingQty: 2, UnitPrice: decimal.NewFromInt(150)},
	)
	form, _ := NewForm(sale)

	if _, err := form.Payload("cash", ""); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}

	form.SetQuantity(2, 1)
	req, err := form.Payload(" UPI ", " wrong colour ")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(req.Items) != 1 || req.Items[0].SaleItemID != 2 {
		t.Fatalf("unexpected items: %+v", req.Items)
	}
	if req.RefundMethod == nil || *req.RefundMethod != "upi" || req.Reason != "wrong colour" {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := form.Payload("voucher", ""); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}

func TestFullyReturnedSaleIsNotReturnable(t *testing.T) {
	sale := saleWithItems(domain.SaleItem{ID: 1, Quantity: 2, RemainingQty: 0})
	if Returnable(sale) {
		t.Fatalf("expected sale not to be returnable")
	}
	if _, err := NewForm(sale); !errors.Is(err, ErrNotReturnable) {
		t.Fatalf("expected ErrNotReturnable, got %v", err)
	}
}

func TestSettleAndSummary(t *testing.T) {
	cash := "cash"
	sale := domain.Sale{Returns: []domain.SaleReturn{
		{RefundAmount: decimal.NewFromInt(300), RefundMethod: &cash},
		{RefundAmount: decimal.NewFromInt(200)},
	}}

	if s := Settle(sale.Returns[0]); s.Kind != KindRefunded || s.Label != "Refunded via Cash" {
		t.Fatalf("unexpected settlement: %+v", s)
	}
	if s := Settle(sale.Returns[1]); s.Kind != KindAdjusted {
		t.Fatalf("unexpected settlement: %+v", s)
	}

	refunded, adjusted := Summary(sale)
	if !refunded.Equal(decimal.NewFromInt(300)) || !adjusted.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected summary: refunded %s adjusted %s", refunded, adjusted)
	}
	if !RefundTotal(sale).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected refund total 500, got %s", RefundTotal(sale))
	}
}
