// Package service ties the API client to the billing, returns, ledger and
// catalog rules. Every workflow validates locally first, sends a single
// request and reports the outcome through a Notifier.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/apiclient"
	"shopdesk/internal/billing"
	"shopdesk/internal/catalog"
	"shopdesk/internal/domain"
	"shopdesk/internal/ledger"
	"shopdesk/internal/notify"
	"shopdesk/internal/reports"
	"shopdesk/internal/returns"
)

var ErrUnknownProduct = errors.New("product not found")

type Options struct {
	LowStockThreshold int
	ShopName          string
	Currency          string
	Location          *time.Location
	Now               func() time.Time
}

type Service struct {
	client   *apiclient.Client
	notifier notify.Notifier
	opts     Options

	mu       sync.Mutex
	cart     *billing.Cart
	products []domain.Product
}

func New(client *apiclient.Client, notifier notify.Notifier, opts Options) *Service {
	if notifier == nil {
		notifier = &notify.Recorder{}
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = reports.DefaultLowStock
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		client:   client,
		notifier: notifier,
		opts:     opts,
		cart:     billing.NewCart(),
	}
}

func (s *Service) Client() *apiclient.Client {
	return s.client
}

func (s *Service) Cart() *billing.Cart {
	return s.cart
}

// Products returns the product list from the last successful load.
func (s *Service) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Service) Login(ctx context.Context, username, password string) error {
	sess, err := s.client.Login(ctx, username, password)
	if err != nil {
		return s.fail(err)
	}
	s.notifier.Success("Welcome, " + sess.Username)
	return nil
}

func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.cart.Clear()
	s.products = nil
	s.mu.Unlock()
	if err := s.client.Logout(ctx); err != nil {
		return s.fail(err)
	}
	s.notifier.Info("Logged out")
	return nil
}

func (s *Service) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.client.ListProducts(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	s.products = products
	s.cart.RefreshStock(products)
	s.mu.Unlock()
	return products, nil
}

// AddToCart puts one unit of a loaded product on the bill.
func (s *Service) AddToCart(productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var product *domain.Product
	for i := range s.products {
		if s.products[i].ID == productID {
			product = &s.products[i]
			break
		}
	}
	if product == nil {
		s.notifier.Error(ErrUnknownProduct.Error())
		return ErrUnknownProduct
	}

	err := s.cart.AddToCart(*product)
	switch {
	case errors.Is(err, billing.ErrOutOfStock):
		s.notifier.Error(product.Name + " is out of stock")
	case errors.Is(err, billing.ErrInsufficientStock):
		s.notifier.Warning(fmt.Sprintf("Only %d of %s in stock", product.CurrentStock, product.Name))
	}
	return err
}

// SaveSale checks out the cart. Nothing is sent when the cart fails local
// validation. On success the cart is cleared and stock reloaded.
func (s *Service) SaveSale(ctx context.Context, opts billing.CheckoutOptions) (domain.Sale, error) {
	s.mu.Lock()
	req, _, err := billing.Checkout(s.cart, opts)
	s.mu.Unlock()
	if err != nil {
		return domain.Sale{}, s.fail(err)
	}

	sale, err := s.client.CreateSale(ctx, req)
	if err != nil {
		return domain.Sale{}, s.fail(err)
	}

	s.mu.Lock()
	s.cart.Clear()
	s.mu.Unlock()
	s.notifier.Success(saleMessage(sale))
	s.reloadProducts(ctx)
	return sale, nil
}

func saleMessage(sale domain.Sale) string {
	msg := fmt.Sprintf("Sale #%d saved", sale.ID)
	if len(sale.Invoices) > 0 {
		msg += ", invoice " + sale.Invoices[0].InvoiceNumber
	}
	if sale.DueAmount.IsPositive() {
		msg += ", due " + sale.DueAmount.StringFixed(2)
	}
	return msg
}

// StartReturn loads a sale and opens a return form for it.
func (s *Service) StartReturn(ctx context.Context, saleID int64) (*returns.Form, domain.Sale, error) {
	sale, err := s.client.GetSale(ctx, saleID)
	if err != nil {
		return nil, domain.Sale{}, s.fail(err)
	}
	form, err := returns.NewForm(sale)
	if err != nil {
		return nil, sale, s.fail(err)
	}
	return form, sale, nil
}

func (s *Service) SubmitReturn(ctx context.Context, form *returns.Form, refundMethod, reason string) (domain.SaleReturn, error) {
	req, err := form.Payload(refundMethod, reason)
	if err != nil {
		return domain.SaleReturn{}, s.fail(err)
	}
	ret, err := s.client.CreateReturn(ctx, form.SaleID, req)
	if err != nil {
		return domain.SaleReturn{}, s.fail(err)
	}

	settlement := returns.Settle(ret)
	s.notifier.Success(fmt.Sprintf("Return saved: %s %s", settlement.Amount.StringFixed(2), settlement.Label))
	s.reloadProducts(ctx)
	return ret, nil
}

// ReceivePayment collects part of a customer's due.
func (s *Service) ReceivePayment(ctx context.Context, customer domain.Customer, amount decimal.Decimal, method string) (domain.Payment, error) {
	req, err := ledger.ValidatePayment(customer, amount, method)
	if err != nil {
		return domain.Payment{}, s.fail(err)
	}
	payment, err := s.client.CreatePayment(ctx, req)
	if err != nil {
		return domain.Payment{}, s.fail(err)
	}
	s.notifier.Success(fmt.Sprintf("Payment of %s received, receipt %s", payment.Amount.StringFixed(2), payment.ReceiptNo))
	return payment, nil
}

// LatestUnpaidSale returns the customer's most recent sale still carrying a
// due, together with the due summed over all of their sales.
func (s *Service) LatestUnpaidSale(ctx context.Context, customerID int64) (domain.Sale, decimal.Decimal, error) {
	sales, err := s.client.ListSales(ctx, &customerID)
	if err != nil {
		return domain.Sale{}, decimal.Zero, s.fail(err)
	}
	sale, err := ledger.FirstUnpaidSale(sales)
	if err != nil {
		return domain.Sale{}, decimal.Zero, err
	}
	return sale, ledger.OutstandingDue(sales), nil
}

// SaveProduct creates the product when editingID is zero and updates it
// otherwise. A duplicate code is reported as a warning and still sent.
func (s *Service) SaveProduct(ctx context.Context, form catalog.ProductForm, editingID int64) (domain.Product, error) {
	warnings, err := form.Validate(s.Products(), editingID)
	if err != nil {
		return domain.Product{}, s.fail(err)
	}
	for _, w := range warnings {
		s.notifier.Warning(w)
	}

	var product domain.Product
	if editingID == 0 {
		product, err = s.client.CreateProduct(ctx, form.Input(true))
	} else {
		product, err = s.client.UpdateProduct(ctx, editingID, form.Input(false))
	}
	if err != nil {
		return domain.Product{}, s.fail(err)
	}
	s.notifier.Success("Product " + product.Code + " saved")
	s.reloadProducts(ctx)
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.client.DeleteProduct(ctx, id); err != nil {
		return s.fail(err)
	}
	s.notifier.Success("Product deleted")
	s.reloadProducts(ctx)
	return nil
}

// SavePurchase creates the purchase when id is zero and replaces its lines
// otherwise.
func (s *Service) SavePurchase(ctx context.Context, form *catalog.PurchaseForm, id int64) (domain.Purchase, error) {
	in, err := form.Input()
	if err != nil {
		return domain.Purchase{}, s.fail(err)
	}

	var purchase domain.Purchase
	if id == 0 {
		purchase, err = s.client.CreatePurchase(ctx, in)
	} else {
		purchase, err = s.client.UpdatePurchase(ctx, id, in)
	}
	if err != nil {
		return domain.Purchase{}, s.fail(err)
	}
	s.notifier.Success(fmt.Sprintf("Purchase #%d saved, %d items", purchase.ID, purchase.TotalItems))
	s.reloadProducts(ctx)
	return purchase, nil
}

func (s *Service) SaveCustomer(ctx context.Context, form catalog.CustomerForm, id int64) (domain.Customer, error) {
	if err := form.Validate(); err != nil {
		return domain.Customer{}, s.fail(err)
	}

	var (
		customer domain.Customer
		err      error
	)
	if id == 0 {
		customer, err = s.client.CreateCustomer(ctx, form.Input())
	} else {
		customer, err = s.client.UpdateCustomer(ctx, id, form.Input())
	}
	if err != nil {
		return domain.Customer{}, s.fail(err)
	}
	s.notifier.Success("Customer " + customer.Name + " saved")
	return customer, nil
}

func (s *Service) Customers(ctx context.Context, query string) ([]domain.Customer, error) {
	customers, err := s.client.ListCustomers(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	return catalog.SearchCustomers(customers, query), nil
}

func (s *Service) Customer(ctx context.Context, id int64) (domain.Customer, error) {
	customers, err := s.client.ListCustomers(ctx)
	if err != nil {
		return domain.Customer{}, s.fail(err)
	}
	for _, c := range customers {
		if c.ID == id {
			return c, nil
		}
	}
	err = fmt.Errorf("customer %d not found", id)
	s.notifier.Error(err.Error())
	return domain.Customer{}, err
}

// History is a customer's filtered payment journal.
type History struct {
	Customer domain.Customer
	Entries  []domain.Payment
	Totals   ledger.Totals
}

func (s *Service) PaymentHistory(ctx context.Context, customerID int64, filter ledger.Filter) (History, error) {
	customer, err := s.Customer(ctx, customerID)
	if err != nil {
		return History{}, err
	}
	payments, err := s.client.CustomerPayments(ctx, customerID)
	if err != nil {
		return History{}, s.fail(err)
	}
	entries := ledger.FilterHistory(payments, filter)
	return History{Customer: customer, Entries: entries, Totals: ledger.HistoryTotals(entries)}, nil
}

func (s *Service) Sales(ctx context.Context, filter reports.SalesFilter) ([]domain.Sale, error) {
	sales, err := s.client.ListSales(ctx, nil)
	if err != nil {
		return nil, s.fail(err)
	}
	filtered, err := reports.FilterSales(sales, filter, s.opts.Location)
	if err != nil {
		return nil, s.fail(err)
	}
	return filtered, nil
}

func (s *Service) Sale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.client.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, s.fail(err)
	}
	return sale, nil
}

func (s *Service) Dashboard(ctx context.Context) (reports.Dashboard, error) {
	products, err := s.LoadProducts(ctx)
	if err != nil {
		return reports.Dashboard{}, err
	}
	sales, err := s.client.ListSales(ctx, nil)
	if err != nil {
		return reports.Dashboard{}, s.fail(err)
	}
	return reports.BuildDashboard(products, sales, s.opts.Now().In(s.opts.Location), s.opts.LowStockThreshold), nil
}

func (s *Service) DailyReport(ctx context.Context, filter reports.SalesFilter) (reports.Summary, error) {
	sales, err := s.Sales(ctx, filter)
	if err != nil {
		return reports.Summary{}, err
	}
	return reports.DailySummary(sales, s.opts.ShopName, s.opts.Currency, s.opts.Location), nil
}

// reloadProducts refreshes stock after a mutation. A failure here does not
// undo the mutation, so it is only logged.
func (s *Service) reloadProducts(ctx context.Context) {
	products, err := s.client.ListProducts(ctx)
	if err != nil {
		log.Printf("[service] WARN: reload products failed: %v", err)
		return
	}
	s.mu.Lock()
	s.products = products
	s.cart.RefreshStock(products)
	s.mu.Unlock()
}

// fail reports err to the user and returns it unchanged.
func (s *Service) fail(err error) error {
	s.notifier.Error(userMessage(err))
	return err
}

func userMessage(err error) string {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		return "Session expired, please log in again"
	case errors.Is(err, apiclient.ErrUnauthenticated):
		return "Please log in first"
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return err.Error()
	}
}
