package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/apiclient"
	"shopdesk/internal/billing"
	"shopdesk/internal/catalog"
	"shopdesk/internal/domain"
	"shopdesk/internal/ledger"
	"shopdesk/internal/notify"
	"shopdesk/internal/sandbox"
	"shopdesk/internal/session"
	"shopdesk/internal/store/memory"
)

const sandboxPassword = "sandbox-pass"

type countingTransport struct {
	next  http.RoundTripper
	count atomic.Int32
}

func (t *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.count.Add(1)
	return t.next.RoundTrip(r)
}

type harness struct {
	svc      *Service
	notes    *notify.Recorder
	requests *countingTransport
}

// newTestService runs the sandbox API in-process and returns a logged-in
// service with the catalog loaded.
func newTestService(t *testing.T) *harness {
	t.Helper()

	repo := memory.NewSeeded(sandboxPassword)
	auth := sandbox.NewAuthManager("service-test-secret-that-is-long-enough", time.Hour, repo)
	srv := httptest.NewServer(sandbox.New(repo, auth, sandbox.Options{Quiet: true}).Handler())
	t.Cleanup(srv.Close)

	counter := &countingTransport{next: http.DefaultTransport}
	client := apiclient.New(srv.URL+"/api", apiclient.Options{
		Transport: counter,
		Sessions:  &session.MemoryStore{},
	})
	notes := &notify.Recorder{}
	svc := New(client, notes, Options{Location: time.UTC, ShopName: "Test Shop", Currency: "INR"})

	ctx := context.Background()
	if err := svc.Login(ctx, "admin", sandboxPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.LoadProducts(ctx); err != nil {
		t.Fatalf("load products: %v", err)
	}
	return &harness{svc: svc, notes: notes, requests: counter}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func productByID(t *testing.T, svc *Service, id int64) domain.Product {
	t.Helper()
	for _, p := range svc.Products() {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("product %d not loaded", id)
	return domain.Product{}
}

func TestSaveSaleBillsCartAndReloadsStock(t *testing.T) {
	h := newTestService(t)
	svc := h.svc
	ctx := context.Background()

	for _, id := range []int64{1, 1, 3} {
		if err := svc.AddToCart(id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}
	_ = svc.Cart().UpdateSellingPrice(1, dec(500))
	_ = svc.Cart().UpdateSellingPrice(3, dec(300))
	svc.Cart().SetDiscount(dec(100))

	if !svc.Cart().Subtotal().Equal(dec(1300)) || !svc.Cart().FinalAmount().Equal(dec(1200)) {
		t.Fatalf("unexpected cart totals %s / %s", svc.Cart().Subtotal(), svc.Cart().FinalAmount())
	}

	sale, err := svc.SaveSale(ctx, billing.CheckoutOptions{PaidNow: dec(1200)})
	if err != nil {
		t.Fatalf("save sale: %v", err)
	}
	if !sale.Total.Equal(dec(1200)) || sale.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("unexpected sale: total %s status %s", sale.Total, sale.PaymentStatus)
	}
	if !svc.Cart().IsEmpty() {
		t.Fatalf("expected cart to be cleared")
	}
	if got := productByID(t, svc, 1).CurrentStock; got != 10 {
		t.Fatalf("expected reloaded stock 10, got %d", got)
	}
	if msg, _ := h.notes.Last(notify.LevelSuccess); !strings.Contains(msg, "invoice INV-") {
		t.Fatalf("unexpected success message %q", msg)
	}
}

func TestCreditSaleWithoutCustomerSendsNoRequest(t *testing.T) {
	h := newTestService(t)
	_ = h.svc.AddToCart(3)
	before := h.requests.count.Load()

	_, err := h.svc.SaveSale(context.Background(), billing.CheckoutOptions{PaidNow: dec(200)})
	if !errors.Is(err, billing.ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
	if _, err := h.svc.SaveSale(context.Background(), billing.CheckoutOptions{PaidNow: dec(5000)}); !errors.Is(err, billing.ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	if after := h.requests.count.Load(); after != before {
		t.Fatalf("expected no request, %d were sent", after-before)
	}
	if h.svc.Cart().IsEmpty() {
		t.Fatalf("expected cart to be kept after a failed checkout")
	}
	if _, ok := h.notes.Last(notify.LevelError); !ok {
		t.Fatalf("expected an error notification")
	}
}

func TestAddToCartRespectsStock(t *testing.T) {
	h := newTestService(t)

	if err := h.svc.AddToCart(8); !errors.Is(err, billing.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := h.svc.AddToCart(5); err != nil {
			t.Fatalf("add dress: %v", err)
		}
	}
	if err := h.svc.AddToCart(5); !errors.Is(err, billing.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if msg, _ := h.notes.Last(notify.LevelWarning); !strings.Contains(msg, "Only 2") {
		t.Fatalf("unexpected warning %q", msg)
	}
	if err := h.svc.AddToCart(999); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestReturnRefundsOneThousand(t *testing.T) {
	h := newTestService(t)
	svc := h.svc
	ctx := context.Background()

	_ = svc.AddToCart(4)
	_ = svc.AddToCart(4)
	_ = svc.Cart().UpdateSellingPrice(4, dec(500))
	sale, err := svc.SaveSale(ctx, billing.CheckoutOptions{PaidNow: dec(1000), PaymentMethod: "upi"})
	if err != nil {
		t.Fatalf("save sale: %v", err)
	}

	form, loaded, err := svc.StartReturn(ctx, sale.ID)
	if err != nil {
		t.Fatalf("start return: %v", err)
	}
	form.SetQuantity(loaded.Items[0].ID, 5)
	if !form.RefundTotal().Equal(dec(1000)) {
		t.Fatalf("expected clamped refund total 1000, got %s", form.RefundTotal())
	}

	ret, err := svc.SubmitReturn(ctx, form, "cash", "wrong size")
	if err != nil {
		t.Fatalf("submit return: %v", err)
	}
	if !ret.RefundAmount.Equal(dec(1000)) || ret.Adjusted() {
		t.Fatalf("unexpected return: %+v", ret)
	}

	after, err := svc.Sale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("reload sale: %v", err)
	}
	if !after.RefundTotal.Equal(dec(1000)) || !after.PaidAmount.IsZero() || !after.DueAmount.IsZero() {
		t.Fatalf("unexpected sale after return: %+v", after)
	}
	if !billing.Reconcile(after).Balanced {
		t.Fatalf("expected balanced ledger after return")
	}
	if got := productByID(t, svc, 4).CurrentStock; got != 8 {
		t.Fatalf("expected kurti stock restored to 8, got %d", got)
	}

	if _, _, err := svc.StartReturn(ctx, sale.ID); err == nil {
		t.Fatalf("expected fully returned sale to be rejected")
	}
}

func TestReceivePaymentClearsDue(t *testing.T) {
	h := newTestService(t)
	svc := h.svc
	ctx := context.Background()
	customerID := int64(2)

	if _, _, err := svc.LatestUnpaidSale(ctx, customerID); !errors.Is(err, ledger.ErrNoUnpaidSale) {
		t.Fatalf("expected ErrNoUnpaidSale before any credit sale, got %v", err)
	}

	_ = svc.AddToCart(7)
	sale, err := svc.SaveSale(ctx, billing.CheckoutOptions{CustomerID: &customerID})
	if err != nil {
		t.Fatalf("credit sale: %v", err)
	}

	unpaid, outstanding, err := svc.LatestUnpaidSale(ctx, customerID)
	if err != nil {
		t.Fatalf("latest unpaid sale: %v", err)
	}
	if unpaid.ID != sale.ID || !unpaid.DueAmount.Equal(dec(399)) || !outstanding.Equal(dec(399)) {
		t.Fatalf("unexpected unpaid sale %+v, outstanding %s", unpaid, outstanding)
	}

	customer, err := svc.Customer(ctx, customerID)
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	if !customer.DueBalance.Equal(dec(399)) {
		t.Fatalf("expected due 399, got %s", customer.DueBalance)
	}

	before := h.requests.count.Load()
	if _, err := svc.ReceivePayment(ctx, customer, dec(400), "cash"); !errors.Is(err, ledger.ErrExceedsDue) {
		t.Fatalf("expected ErrExceedsDue, got %v", err)
	}
	if h.requests.count.Load() != before {
		t.Fatalf("expected rejected payment to send nothing")
	}

	payment, err := svc.ReceivePayment(ctx, customer, dec(399), "")
	if err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if payment.ReceiptNo == "" || payment.PaymentMethod != domain.PaymentMethodCash {
		t.Fatalf("unexpected payment %+v", payment)
	}

	customer, _ = svc.Customer(ctx, customerID)
	if !customer.DueBalance.IsZero() {
		t.Fatalf("expected due 0, got %s", customer.DueBalance)
	}
	if _, _, err := svc.LatestUnpaidSale(ctx, customerID); !errors.Is(err, ledger.ErrNoUnpaidSale) {
		t.Fatalf("expected ErrNoUnpaidSale after settling, got %v", err)
	}

	history, err := svc.PaymentHistory(ctx, customerID, ledger.Filter{Kind: ledger.KindPayment})
	if err != nil {
		t.Fatalf("payment history: %v", err)
	}
	if len(history.Entries) != 1 || !history.Totals.Net.Equal(dec(399)) {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestSaveProductWarnsOnDuplicateCodeAndSurfacesConflict(t *testing.T) {
	h := newTestService(t)

	form := catalog.ProductForm{Code: "TS-BLU-M", Name: "Another Tee", Category: "T-Shirts", SellPrice: dec(450)}
	_, err := h.svc.SaveProduct(context.Background(), form, 0)

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 from the backend, got %v", err)
	}
	if msg, _ := h.notes.Last(notify.LevelWarning); !strings.Contains(msg, "already exists") {
		t.Fatalf("expected duplicate warning, got %q", msg)
	}
	if msg, _ := h.notes.Last(notify.LevelError); !strings.Contains(msg, "already exists") {
		t.Fatalf("expected backend message in error, got %q", msg)
	}

	if _, err := h.svc.SaveProduct(context.Background(), catalog.ProductForm{}, 0); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSavePurchaseUpdatesLoadedStock(t *testing.T) {
	h := newTestService(t)
	svc := h.svc
	ctx := context.Background()

	form := catalog.NewPurchaseForm(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	if err := form.SelectProduct(0, productByID(t, svc, 8)); err != nil {
		t.Fatalf("select product: %v", err)
	}
	form.Lines[0].Quantity = 6
	form.Supplier = "Loom Traders"

	purchase, err := svc.SavePurchase(ctx, form, 0)
	if err != nil {
		t.Fatalf("save purchase: %v", err)
	}
	if purchase.TotalItems != 6 || purchase.Supplier != "Loom Traders" {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
	if got := productByID(t, svc, 8).CurrentStock; got != 6 {
		t.Fatalf("expected scarf stock 6, got %d", got)
	}

	edit := catalog.PurchaseFormFrom(purchase)
	edit.Lines[0].Quantity = 4
	if _, err := svc.SavePurchase(ctx, edit, purchase.ID); err != nil {
		t.Fatalf("edit purchase: %v", err)
	}
	if got := productByID(t, svc, 8).CurrentStock; got != 4 {
		t.Fatalf("expected scarf stock 4 after edit, got %d", got)
	}
}

func TestDashboardCountsTodaysBills(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	_ = h.svc.AddToCart(1)
	if _, err := h.svc.SaveSale(ctx, billing.CheckoutOptions{PaidNow: dec(499)}); err != nil {
		t.Fatalf("save sale: %v", err)
	}

	d, err := h.svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.TodayBills != 1 || !d.TodaySales.Equal(dec(499)) {
		t.Fatalf("unexpected dashboard today figures: %d bills, %s", d.TodayBills, d.TodaySales)
	}
	if d.OutOfStock != 1 || d.TotalProducts != 8 {
		t.Fatalf("unexpected catalog figures: %+v", d)
	}
}

func TestSessionExpiryIsReported(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()
	if err := h.svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := h.svc.LoadProducts(ctx); !errors.Is(err, apiclient.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if msg, _ := h.notes.Last(notify.LevelError); msg != "Please log in first" {
		t.Fatalf("unexpected message %q", msg)
	}
}
