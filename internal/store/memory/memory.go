package memory

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shopdesk/internal/domain"
	"shopdesk/internal/store"
	"shopdesk/internal/xid"
)

const (
	seqProduct = iota
	seqPurchase
	seqPurchaseItem
	seqSale
	seqSaleItem
	seqReturn
	seqPayment
	seqInvoice
	seqCustomer
	seqCount
)

type invoiceRecord struct {
	invoice  domain.Invoice
	issuedAt time.Time
	saleID   int64
	returnID int64
}

var _ store.Repository = (*Store)(nil)

type Store struct {
	mu              sync.RWMutex
	seq             [seqCount]int64
	products        map[int64]domain.Product
	purchases       map[int64]domain.Purchase
	sales           map[int64]*domain.Sale
	salesByIdem     map[string]int64
	customers       map[int64]domain.Customer
	payments        []domain.Payment
	invoices        map[int64]invoiceRecord
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		purchases:       make(map[int64]domain.Purchase),
		sales:           make(map[int64]*domain.Sale),
		salesByIdem:     make(map[string]int64),
		customers:       make(map[int64]domain.Customer),
		invoices:        make(map[int64]invoiceRecord),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a small clothing catalog, two customers and
// an admin account. Without a password no account is created.
func NewSeeded(adminPassword string) *Store {
	s := New()

	products := []struct {
		code, name, category, gender, size, color string
		buy, sell                                 int64
		stock                                     int
	}{
		{"TS-BLU-M", "Cotton Crew Tee", "T-Shirts", domain.GenderMale, "M", "Blue", 220, 499, 12},
		{"TS-BLK-L", "Cotton Crew Tee", "T-Shirts", domain.GenderMale, "L", "Black", 220, 499, 3},
		{"JN-IND-32", "Slim Fit Jeans", "Jeans", domain.GenderMale, "32", "Indigo", 650, 1299, 6},
		{"KU-RED-S", "Printed Kurti", "Ethnic", domain.GenderFemale, "S", "Red", 380, 849, 8},
		{"DR-YEL-M", "Summer Dress", "Dresses", domain.GenderFemale, "M", "Yellow", 540, 1149, 2},
		{"FR-PNK-4", "Party Frock", "Kids", domain.GenderGirls, "4Y", "Pink", 310, 699, 5},
		{"SH-GRN-6", "Cargo Shorts", "Kids", domain.GenderBoys, "6Y", "Green", 180, 399, 9},
		{"SC-WHT", "Cotton Scarf", "Accessories", domain.GenderUnisex, "", "White", 90, 249, 0},
	}
	for _, p := range products {
		id := s.next(seqProduct)
		s.products[id] = domain.Product{
			ID:           id,
			Code:         p.code,
			Name:         p.name,
			Category:     p.category,
			Gender:       p.gender,
			Size:         p.size,
			Color:        p.color,
			BuyPrice:     decimal.NewFromInt(p.buy),
			SellPrice:    decimal.NewFromInt(p.sell),
			CurrentStock: p.stock,
		}
	}

	for _, c := range []domain.Customer{
		{Name: "Anita Sharma", Phone: "9845012345", Email: "anita@example.com", Address: "MG Road"},
		{Name: "Rahul Verma", Phone: "9900112233"},
	} {
		c.ID = s.next(seqCustomer)
		s.customers[c.ID] = c
	}

	if strings.TrimSpace(adminPassword) == "" {
		log.Println("[memory-store] WARNING: no admin password given, sandbox login is disabled")
		return s
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	s.usersByUsername["admin"] = domain.UserAccount{
		Username:  "admin",
		Password:  string(hash),
		Role:      "admin",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	return s
}

func (s *Store) next(kind int) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpInt64(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, in domain.ProductInput) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.productFromInput(0, in)
	if err != nil {
		return nil, err
	}
	if in.OpeningStock != nil {
		product.CurrentStock = *in.OpeningStock
	}

	product.ID = s.next(seqProduct)
	s.products[product.ID] = product
	return &product, nil
}

// UpdateProduct changes product details. Stock only moves through purchases,
// sales and returns.
func (s *Store) UpdateProduct(_ context.Context, id int64, in domain.ProductInput) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	product, err := s.productFromInput(id, in)
	if err != nil {
		return nil, err
	}
	product.ID = id
	product.CurrentStock = existing.CurrentStock
	s.products[id] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	if s.productReferenced(id) {
		return fmt.Errorf("%w: product %s is used in sales or purchases", store.ErrConflict, product.Code)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) productFromInput(id int64, in domain.ProductInput) (domain.Product, error) {
	product, err := store.ProductFields(in)
	if err != nil {
		return domain.Product{}, err
	}
	if s.codeTaken(product.Code, id) {
		return domain.Product{}, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
	}
	return product, nil
}

func (s *Store) codeTaken(code string, exceptID int64) bool {
	for _, p := range s.products {
		if p.ID != exceptID && strings.EqualFold(p.Code, code) {
			return true
		}
	}
	return false
}

func (s *Store) productReferenced(id int64) bool {
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return true
			}
		}
	}
	for _, purchase := range s.purchases {
		for _, item := range purchase.Items {
			if item.ProductID == id {
				return true
			}
		}
	}
	return false
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		c.DueBalance = s.customerDue(c.ID)
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpInt64(a.ID, b.ID)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	c.DueBalance = s.customerDue(id)
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, in domain.CustomerInput) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := store.CustomerFields(in)
	if err != nil {
		return nil, err
	}
	c.ID = s.next(seqCustomer)
	s.customers[c.ID] = c
	return &c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, id int64, in domain.CustomerInput) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return nil, store.ErrNotFound
	}
	c, err := store.CustomerFields(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	s.customers[id] = c
	c.DueBalance = s.customerDue(id)
	return &c, nil
}

// customerDue is the sum of the open dues of the customer's sales.
func (s *Store) customerDue(customerID int64) decimal.Decimal {
	due := decimal.Zero
	for _, sale := range s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == customerID {
			due = due.Add(sale.DueAmount)
		}
	}
	return due
}

func (s *Store) ListCustomerPayments(_ context.Context, customerID int64) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.customers[customerID]; !exists {
		return nil, store.ErrNotFound
	}
	history := make([]domain.Payment, 0)
	for _, p := range s.payments {
		if p.CustomerID != nil && *p.CustomerID == customerID {
			history = append(history, clonePayment(p))
		}
	}
	slices.SortFunc(history, func(a, b domain.Payment) int {
		if !a.PaymentDate.Equal(b.PaymentDate) {
			return b.PaymentDate.Compare(a.PaymentDate)
		}
		return cmpInt64(b.ID, a.ID)
	})
	return history, nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (*domain.InvoiceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.invoices[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	sale, exists := s.sales[rec.saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	doc := &domain.InvoiceDocument{
		Invoice:  rec.invoice,
		IssuedAt: rec.issuedAt,
		Sale:     s.saleView(sale),
	}
	if rec.returnID != 0 {
		for _, ret := range doc.Sale.Returns {
			if ret.ID == rec.returnID {
				ret := ret
				doc.Return = &ret
				break
			}
		}
	}
	return doc, nil
}

func (s *Store) GetReceipt(_ context.Context, receiptNo string) (*domain.ReceiptDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.ReceiptNo != receiptNo {
			continue
		}
		doc := &domain.ReceiptDocument{Payment: clonePayment(p)}
		if p.CustomerID != nil {
			if c, ok := s.customers[*p.CustomerID]; ok {
				c.DueBalance = s.customerDue(c.ID)
				doc.Customer = &c
			}
		}
		if p.SaleID != nil {
			if sale, ok := s.sales[*p.SaleID]; ok {
				view := s.saleView(sale)
				doc.Sale = &view
			}
		}
		return doc, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "staff"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// issueInvoice numbers and records an invoice for a sale or one of its returns.
func (s *Store) issueInvoice(kind string, at time.Time, saleID, returnID int64) domain.Invoice {
	prefix := "INV"
	if kind == domain.InvoiceTypeRefund {
		prefix = "RF"
	}
	id := s.next(seqInvoice)
	invoice := domain.Invoice{ID: id, InvoiceNumber: xid.Document(prefix, at, id), Type: kind}
	s.invoices[id] = invoiceRecord{invoice: invoice, issuedAt: at, saleID: saleID, returnID: returnID}
	return invoice
}

// recordPayment numbers a receipt and appends p to the payment journal.
func (s *Store) recordPayment(p domain.Payment) domain.Payment {
	p.ID = s.next(seqPayment)
	p.ReceiptNo = xid.Document("RCPT", p.PaymentDate, p.ID)
	s.payments = append(s.payments, p)
	return clonePayment(p)
}

func productRef(p domain.Product) *domain.ProductRef {
	return &domain.ProductRef{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Size:      p.Size,
		Color:     p.Color,
		SellPrice: p.SellPrice,
	}
}

func units(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func clonePayment(src domain.Payment) domain.Payment {
	dst := src
	dst.CustomerID = cloneID(src.CustomerID)
	dst.SaleID = cloneID(src.SaleID)
	if src.Invoice != nil {
		inv := *src.Invoice
		dst.Invoice = &inv
	}
	return dst
}

func cloneReturn(src domain.SaleReturn) domain.SaleReturn {
	dst := src
	if src.RefundMethod != nil {
		m := *src.RefundMethod
		dst.RefundMethod = &m
	}
	if src.Invoice != nil {
		inv := *src.Invoice
		dst.Invoice = &inv
	}
	dst.Items = slices.Clone(src.Items)
	return dst
}

func cloneSale(src *domain.Sale) domain.Sale {
	dst := *src
	dst.CustomerID = cloneID(src.CustomerID)
	dst.Items = slices.Clone(src.Items)
	dst.Invoices = slices.Clone(src.Invoices)
	dst.Payments = make([]domain.Payment, 0, len(src.Payments))
	for _, p := range src.Payments {
		dst.Payments = append(dst.Payments, clonePayment(p))
	}
	dst.Returns = make([]domain.SaleReturn, 0, len(src.Returns))
	for _, r := range src.Returns {
		dst.Returns = append(dst.Returns, cloneReturn(r))
	}
	return dst
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	dst := src
	dst.Items = slices.Clone(src.Items)
	return dst
}
