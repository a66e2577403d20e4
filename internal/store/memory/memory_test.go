package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
	"shopdesk/internal/store"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func strPtr(v string) *string {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func assertBalanced(t *testing.T, sale *domain.Sale) {
	t.Helper()
	expected := sale.Total.Sub(sale.RefundTotal)
	if !sale.PaidAmount.Add(sale.DueAmount).Equal(expected) {
		t.Fatalf("ledger out of balance: paid %s + due %s != %s", sale.PaidAmount, sale.DueAmount, expected)
	}
	if !sale.NetTotal.Equal(expected) {
		t.Fatalf("expected net total %s, got %s", expected, sale.NetTotal)
	}
}

// creditSale bills two tees (499 each) to customer 1 with 200 paid now.
func creditSale(t *testing.T, s *Store) *domain.Sale {
	t.Helper()
	sale, err := s.CreateSale(context.Background(), domain.SaleRequest{
		SaleDate:      time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
		CustomerID:    int64Ptr(1),
		Discount:      dec(98),
		PaidAmount:    dec(200),
		PaymentMethod: "upi",
		Items:         []domain.SaleItemInput{{ProductID: 1, Quantity: 2, UnitPrice: dec(499)}},
	}, "")
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return sale
}

func TestCreateSaleTakesStockAndIssuesDocuments(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()

	sale := creditSale(t, s)
	if !sale.Total.Equal(dec(900)) || !sale.DueAmount.Equal(dec(700)) {
		t.Fatalf("unexpected totals: total %s due %s", sale.Total, sale.DueAmount)
	}
	if sale.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected partial status, got %s", sale.PaymentStatus)
	}
	if sale.Customer == nil || sale.Customer.Name != "Anita Sharma" {
		t.Fatalf("expected customer to be attached, got %+v", sale.Customer)
	}
	if len(sale.Invoices) != 1 || sale.Invoices[0].Type != domain.InvoiceTypeSale {
		t.Fatalf("expected one sale invoice, got %+v", sale.Invoices)
	}
	if len(sale.Payments) != 1 || sale.Payments[0].PaymentMethod != "upi" || sale.Payments[0].ReceiptNo == "" {
		t.Fatalf("expected one upi payment with a receipt, got %+v", sale.Payments)
	}
	if sale.Items[0].RemainingQty != 2 || !sale.Items[0].MRP.Equal(dec(499)) {
		t.Fatalf("unexpected sale item: %+v", sale.Items[0])
	}
	assertBalanced(t, sale)

	product, _ := s.GetProduct(ctx, 1)
	if product.CurrentStock != 10 {
		t.Fatalf("expected stock 10, got %d", product.CurrentStock)
	}
	customer, _ := s.GetCustomer(ctx, 1)
	if !customer.DueBalance.Equal(dec(700)) {
		t.Fatalf("expected due balance 700, got %s", customer.DueBalance)
	}

	doc, err := s.GetInvoice(ctx, sale.Invoices[0].ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if doc.Sale.ID != sale.ID || doc.Return != nil {
		t.Fatalf("unexpected invoice document: %+v", doc)
	}
	receipt, err := s.GetReceipt(ctx, sale.Payments[0].ReceiptNo)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	if receipt.Sale == nil || receipt.Customer == nil {
		t.Fatalf("expected receipt to carry sale and customer")
	}
}

func TestCreateSaleValidation(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()

	_, err := s.CreateSale(ctx, domain.SaleRequest{
		PaidAmount: dec(100),
		Items:      []domain.SaleItemInput{{ProductID: 1, Quantity: 1, UnitPrice: dec(499)}},
	}, "")
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected credit sale without customer to fail, got %v", err)
	}

	_, err = s.CreateSale(ctx, domain.SaleRequest{
		PaidAmount: dec(998),
		Items: []domain.SaleItemInput{
			{ProductID: 2, Quantity: 2, UnitPrice: dec(499)},
			{ProductID: 2, Quantity: 2, UnitPrice: dec(499)},
		},
	}, "")
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock across lines, got %v", err)
	}

	_, err = s.CreateSale(ctx, domain.SaleRequest{
		PaidAmount: dec(600),
		Items:      []domain.SaleItemInput{{ProductID: 1, Quantity: 1, UnitPrice: dec(499)}},
	}, "")
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected overpayment to fail, got %v", err)
	}

	product, _ := s.GetProduct(ctx, 2)
	if product.CurrentStock != 3 {
		t.Fatalf("expected failed sales to leave stock at 3, got %d", product.CurrentStock)
	}
}

func TestCreateSaleIsIdempotent(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()
	req := domain.SaleRequest{
		PaidAmount: dec(499),
		Items:      []domain.SaleItemInput{{ProductID: 1, Quantity: 1, UnitPrice: dec(499)}},
	}

	first, err := s.CreateSale(ctx, req, "req-1")
	if err != nil {
		t.Fatalf("first sale: %v", err)
	}
	second, err := s.CreateSale(ctx, req, "req-1")
	if err != nil {
		t.Fatalf("replayed sale: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected replay to return sale %d, got %d", first.ID, second.ID)
	}
	product, _ := s.GetProduct(ctx, 1)
	if product.CurrentStock != 11 {
		t.Fatalf("expected stock to drop once, got %d", product.CurrentStock)
	}
}

func TestReturnWithoutMethodIsAdjustedAgainstDue(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()
	sale := creditSale(t, s)

	ret, err := s.CreateReturn(ctx, sale.ID, domain.ReturnRequest{
		Items:  []domain.ReturnItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
		Reason: "size issue",
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if !ret.Adjusted() || !ret.RefundAmount.Equal(dec(499)) {
		t.Fatalf("unexpected return: %+v", ret)
	}
	if ret.Invoice == nil || ret.Invoice.Type != domain.InvoiceTypeRefund {
		t.Fatalf("expected refund invoice, got %+v", ret.Invoice)
	}

	updated, _ := s.GetSale(ctx, sale.ID)
	if !updated.DueAmount.Equal(dec(201)) || !updated.PaidAmount.Equal(dec(200)) {
		t.Fatalf("expected due 201 paid 200, got due %s paid %s", updated.DueAmount, updated.PaidAmount)
	}
	if updated.Items[0].RemainingQty != 1 {
		t.Fatalf("expected one unit left to return, got %d", updated.Items[0].RemainingQty)
	}
	assertBalanced(t, updated)

	product, _ := s.GetProduct(ctx, 1)
	if product.CurrentStock != 11 {
		t.Fatalf("expected restock to 11, got %d", product.CurrentStock)
	}
}

func TestReturnWithMethodPaysOutAndAdjustsRest(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()
	sale := creditSale(t, s)

	_, err := s.CreateReturn(ctx, sale.ID, domain.ReturnRequest{
		Items:        []domain.ReturnItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 2}},
		RefundMethod: strPtr("cash"),
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}

	updated, _ := s.GetSale(ctx, sale.ID)
	// refund is capped at the 900 billed; 200 goes back in cash, 700 clears the due
	if !updated.RefundTotal.Equal(dec(900)) || !updated.PaidAmount.IsZero() || !updated.DueAmount.IsZero() {
		t.Fatalf("unexpected sale after full return: %+v", updated)
	}
	assertBalanced(t, updated)

	last := updated.Payments[len(updated.Payments)-1]
	if !last.Amount.Equal(dec(-200)) || last.PaymentMethod != "cash" {
		t.Fatalf("expected -200 cash refund entry, got %+v", last)
	}

	_, err = s.CreateReturn(ctx, sale.ID, domain.ReturnRequest{
		Items: []domain.ReturnItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected fully returned sale to be rejected, got %v", err)
	}
}

func TestReturnRejectsQuantityAboveRemaining(t *testing.T) {
	s := NewSeeded("")
	sale := creditSale(t, s)

	_, err := s.CreateReturn(context.Background(), sale.ID, domain.ReturnRequest{
		Items: []domain.ReturnItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 3}},
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected over-return to fail, got %v", err)
	}
	if _, err := s.CreateReturn(context.Background(), 99, domain.ReturnRequest{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown sale to be not found, got %v", err)
	}
}

func TestCreatePaymentAllocatesOldestFirst(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()

	older, err := s.CreateSale(ctx, domain.SaleRequest{
		SaleDate:   time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC),
		CustomerID: int64Ptr(2),
		Items:      []domain.SaleItemInput{{ProductID: 3, Quantity: 1, UnitPrice: dec(1000)}},
	}, "")
	if err != nil {
		t.Fatalf("older sale: %v", err)
	}
	newer, err := s.CreateSale(ctx, domain.SaleRequest{
		SaleDate:   time.Date(2026, 10, 10, 10, 0, 0, 0, time.UTC),
		CustomerID: int64Ptr(2),
		Items:      []domain.SaleItemInput{{ProductID: 4, Quantity: 1, UnitPrice: dec(500)}},
	}, "")
	if err != nil {
		t.Fatalf("newer sale: %v", err)
	}

	if _, err := s.CreatePayment(ctx, domain.PaymentRequest{CustomerID: 2, Amount: dec(2000)}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected payment above due to fail, got %v", err)
	}

	payment, err := s.CreatePayment(ctx, domain.PaymentRequest{CustomerID: 2, Amount: dec(1200)})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.PaymentMethod != domain.PaymentMethodCash || payment.SaleID != nil {
		t.Fatalf("unexpected payment: %+v", payment)
	}

	first, _ := s.GetSale(ctx, older.ID)
	second, _ := s.GetSale(ctx, newer.ID)
	if !first.DueAmount.IsZero() || first.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected older sale settled, got due %s", first.DueAmount)
	}
	if !second.DueAmount.Equal(dec(300)) || second.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected newer sale due 300, got %s", second.DueAmount)
	}
	assertBalanced(t, first)
	assertBalanced(t, second)

	history, _ := s.ListCustomerPayments(ctx, 2)
	if len(history) != 1 || !history[0].Amount.Equal(dec(1200)) {
		t.Fatalf("expected one journal entry of 1200, got %+v", history)
	}
	customer, _ := s.GetCustomer(ctx, 2)
	if !customer.DueBalance.Equal(dec(300)) {
		t.Fatalf("expected due balance 300, got %s", customer.DueBalance)
	}
}

func TestListSalesFiltersByCustomer(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()
	creditSale(t, s)
	if _, err := s.CreateSale(ctx, domain.SaleRequest{
		PaidAmount: dec(399),
		Items:      []domain.SaleItemInput{{ProductID: 7, Quantity: 1, UnitPrice: dec(399)}},
	}, ""); err != nil {
		t.Fatalf("walk-in sale: %v", err)
	}

	all, _ := s.ListSales(ctx, nil)
	mine, _ := s.ListSales(ctx, int64Ptr(1))
	if len(all) != 2 || len(mine) != 1 {
		t.Fatalf("expected 2 sales and 1 for customer, got %d and %d", len(all), len(mine))
	}
}

func TestDeleteProductReferencedBySaleConflicts(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()
	creditSale(t, s)

	if err := s.DeleteProduct(ctx, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.DeleteProduct(ctx, 8); err != nil {
		t.Fatalf("delete unused product: %v", err)
	}
	if _, err := s.GetProduct(ctx, 8); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted product to be gone, got %v", err)
	}
}

func TestProductCodeMustBeUnique(t *testing.T) {
	s := NewSeeded("")
	_, err := s.CreateProduct(context.Background(), domain.ProductInput{
		Code:      "ts-blu-m",
		Name:      "Duplicate",
		Category:  "T-Shirts",
		SellPrice: dec(10),
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate code conflict, got %v", err)
	}
}

func TestPurchaseCreatesProductsAndEditReversesStock(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()
	sell := dec(549)

	purchase, err := s.CreatePurchase(ctx, domain.PurchaseInput{
		PurchaseDate: "2026-10-18",
		Items: []domain.PurchaseItemInput{
			{ProductID: int64Ptr(2), Quantity: 5, UnitPrice: dec(230), SellPrice: &sell},
			{Product: &domain.NewProductInput{Code: "cap-blk", Name: "Baseball Cap", SellPrice: dec(299)}, Quantity: 4, UnitPrice: dec(120)},
		},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.Supplier != "Unnamed Supplier" || purchase.TotalItems != 9 || !purchase.TotalAmount.Equal(dec(1630)) {
		t.Fatalf("unexpected purchase summary: %+v", purchase)
	}

	tee, _ := s.GetProduct(ctx, 2)
	if tee.CurrentStock != 8 || !tee.BuyPrice.Equal(dec(230)) || !tee.SellPrice.Equal(sell) {
		t.Fatalf("unexpected tee after purchase: %+v", tee)
	}
	capID := purchase.Items[1].ProductID
	hat, _ := s.GetProduct(ctx, capID)
	if hat.Code != "CAP-BLK" || hat.CurrentStock != 4 {
		t.Fatalf("unexpected new product: %+v", hat)
	}

	updated, err := s.UpdatePurchase(ctx, purchase.ID, domain.PurchaseInput{
		PurchaseDate: "2026-10-18",
		Supplier:     "Loom Traders",
		Items: []domain.PurchaseItemInput{
			{ProductID: int64Ptr(2), Quantity: 2, UnitPrice: dec(230)},
			{ProductID: int64Ptr(capID), Quantity: 4, UnitPrice: dec(120)},
		},
	})
	if err != nil {
		t.Fatalf("update purchase: %v", err)
	}
	if updated.Supplier != "Loom Traders" {
		t.Fatalf("expected supplier to change, got %s", updated.Supplier)
	}
	tee, _ = s.GetProduct(ctx, 2)
	if tee.CurrentStock != 5 {
		t.Fatalf("expected tee stock 5 after edit, got %d", tee.CurrentStock)
	}
}

func TestUpdatePurchaseRejectsEditBelowSoldStock(t *testing.T) {
	s := NewSeeded("")
	ctx := context.Background()

	purchase, err := s.CreatePurchase(ctx, domain.PurchaseInput{
		Items: []domain.PurchaseItemInput{{ProductID: int64Ptr(8), Quantity: 3, UnitPrice: dec(90)}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if _, err := s.CreateSale(ctx, domain.SaleRequest{
		PaidAmount: dec(498),
		Items:      []domain.SaleItemInput{{ProductID: 8, Quantity: 2, UnitPrice: dec(249)}},
	}, ""); err != nil {
		t.Fatalf("sell scarves: %v", err)
	}

	_, err = s.UpdatePurchase(ctx, purchase.ID, domain.PurchaseInput{
		Items: []domain.PurchaseItemInput{{ProductID: int64Ptr(8), Quantity: 1, UnitPrice: dec(90)}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	scarf, _ := s.GetProduct(ctx, 8)
	if scarf.CurrentStock != 1 {
		t.Fatalf("expected rejected edit to leave stock at 1, got %d", scarf.CurrentStock)
	}
}

func TestSeededAdminPasswordIsHashed(t *testing.T) {
	s := NewSeeded("correct horse battery")
	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].Username != "admin" || users[0].Password == "correct horse battery" {
		t.Fatalf("unexpected seeded users: %+v", users)
	}
}
