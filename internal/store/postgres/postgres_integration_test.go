package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
	"shopdesk/internal/store"
)

// newTestStore connects to SHOPDESK_TEST_DATABASE_URL inside a throwaway
// schema so runs never touch existing tables.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("SHOPDESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SHOPDESK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	admin, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	schemaName := fmt.Sprintf("shopdesk_it_%d", time.Now().UnixNano())
	if _, err := admin.db.ExecContext(ctx, `CREATE SCHEMA `+schemaName); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.db.ExecContext(ctx, `DROP SCHEMA `+schemaName+` CASCADE`)
		_ = admin.Close()
	})

	u, err := url.Parse(databaseURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schemaName)
	u.RawQuery = q.Encode()

	s, err := New(ctx, u.String())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestSaleReturnAndPaymentKeepBalances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stock := 10
	product, err := s.CreateProduct(ctx, domain.ProductInput{
		Code: "it-tee", Name: "Integration Tee", Category: "T-Shirts",
		BuyPrice: decimal.NewFromInt(200), SellPrice: decimal.NewFromInt(500), OpeningStock: &stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.ProductInput{Code: "IT-TEE", Name: "Dup", Category: "T-Shirts"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected code conflict, got %v", err)
	}
	customer, err := s.CreateCustomer(ctx, domain.CustomerInput{Name: "Integration Customer"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	req := domain.SaleRequest{
		CustomerID: &customer.ID,
		Discount:   decimal.NewFromInt(100),
		PaidAmount: decimal.NewFromInt(400),
		Items:      []domain.SaleItemInput{{ProductID: product.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(500)}},
	}
	sale, err := s.CreateSale(ctx, req, "it-key-1")
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.Total.Equal(decimal.NewFromInt(1400)) || !sale.DueAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected totals total=%s due=%s", sale.Total, sale.DueAmount)
	}
	if sale.PaymentStatus != domain.PaymentStatusPartial || len(sale.Invoices) != 1 || len(sale.Payments) != 1 {
		t.Fatalf("unexpected sale %+v", sale)
	}
	again, err := s.CreateSale(ctx, req, "it-key-1")
	if err != nil || again.ID != sale.ID {
		t.Fatalf("expected idempotent replay of sale %d, got %v %v", sale.ID, again, err)
	}

	if _, err := s.CreateSale(ctx, domain.SaleRequest{
		PaidAmount: decimal.NewFromInt(8000),
		Items:      []domain.SaleItemInput{{ProductID: product.ID, Quantity: 8, UnitPrice: decimal.NewFromInt(1000)}},
	}, ""); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	ret, err := s.CreateReturn(ctx, sale.ID, domain.ReturnRequest{
		Items:  []domain.ReturnItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
		Reason: "size",
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if !ret.RefundAmount.Equal(decimal.NewFromInt(500)) || !ret.Adjusted() || ret.Invoice == nil {
		t.Fatalf("unexpected return %+v", ret)
	}

	payment, err := s.CreatePayment(ctx, domain.PaymentRequest{CustomerID: customer.ID, Amount: decimal.NewFromInt(300), PaymentMethod: "upi"})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.ReceiptNo == "" {
		t.Fatalf("expected receipt number")
	}
	if _, err := s.CreatePayment(ctx, domain.PaymentRequest{CustomerID: customer.ID, Amount: decimal.NewFromInt(1000)}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected overpayment to be rejected, got %v", err)
	}

	got, err := s.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !got.PaidAmount.Add(got.DueAmount).Equal(got.Total.Sub(got.RefundTotal)) {
		t.Fatalf("balances drifted paid=%s due=%s total=%s refunds=%s", got.PaidAmount, got.DueAmount, got.Total, got.RefundTotal)
	}
	if !got.DueAmount.Equal(decimal.NewFromInt(200)) || len(got.Returns) != 1 || len(got.Invoices) != 2 {
		t.Fatalf("unexpected sale after return and payment %+v", got)
	}

	p, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.CurrentStock != 8 {
		t.Fatalf("expected stock 8, got %d", p.CurrentStock)
	}
	if err := s.DeleteProduct(ctx, product.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected referenced product delete to conflict, got %v", err)
	}

	c, err := s.GetCustomer(ctx, customer.ID)
	if err != nil || !c.DueBalance.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected customer due %v %v", c, err)
	}
	receipt, err := s.GetReceipt(ctx, payment.ReceiptNo)
	if err != nil || receipt.Customer == nil {
		t.Fatalf("receipt: %v %+v", err, receipt)
	}
}

func TestPurchaseEditReversesStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	purchase, err := s.CreatePurchase(ctx, domain.PurchaseInput{
		PurchaseDate: "2026-10-01",
		Items: []domain.PurchaseItemInput{{
			Product:   &domain.NewProductInput{Code: "it-scarf", Name: "Scarf", SellPrice: decimal.NewFromInt(249)},
			Quantity:  6,
			UnitPrice: decimal.NewFromInt(90),
		}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.Supplier != store.DefaultSupplier || purchase.PurchaseDate != "2026-10-01" || purchase.TotalItems != 6 {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
	productID := purchase.Items[0].ProductID

	updated, err := s.UpdatePurchase(ctx, purchase.ID, domain.PurchaseInput{
		PurchaseDate: "2026-10-02",
		Supplier:     "Weaver Co",
		Items:        []domain.PurchaseItemInput{{ProductID: &productID, Quantity: 4, UnitPrice: decimal.NewFromInt(95)}},
	})
	if err != nil {
		t.Fatalf("update purchase: %v", err)
	}
	if updated.TotalItems != 4 || !updated.TotalAmount.Equal(decimal.NewFromInt(380)) {
		t.Fatalf("unexpected updated purchase %+v", updated)
	}
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.CurrentStock != 4 || p.Code != "IT-SCARF" || !p.BuyPrice.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("unexpected product after edit %+v", p)
	}

	list, err := s.ListPurchases(ctx)
	if err != nil || len(list) != 1 || list[0].ItemsCount != 1 {
		t.Fatalf("list purchases: %v %+v", err, list)
	}
}
