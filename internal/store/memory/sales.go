package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
	"shopdesk/internal/store"
)

func (s *Store) ListSales(_ context.Context, customerID *int64) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if customerID != nil && (sale.CustomerID == nil || *sale.CustomerID != *customerID) {
			continue
		}
		sales = append(sales, s.saleView(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if !a.SaleDate.Equal(b.SaleDate) {
			return b.SaleDate.Compare(a.SaleDate)
		}
		return cmpInt64(b.ID, a.ID)
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	view := s.saleView(sale)
	return &view, nil
}

// CreateSale records a bill, takes the stock out and issues the invoice and,
// when something was paid, the payment receipt. A repeated idempotency key
// returns the sale recorded the first time.
func (s *Store) CreateSale(_ context.Context, req domain.SaleRequest, idempotencyKey string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		if id, ok := s.salesByIdem[idempotencyKey]; ok {
			view := s.saleView(s.sales[id])
			return &view, nil
		}
	}

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidTransaction)
	}
	if req.CustomerID != nil {
		if _, ok := s.customers[*req.CustomerID]; !ok {
			return nil, fmt.Errorf("customer %d: %w", *req.CustomerID, store.ErrNotFound)
		}
	}

	needed := map[int64]int{}
	subtotal := decimal.Zero
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, in := range req.Items {
		if in.Quantity < 1 || in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: invalid line for product %d", store.ErrInvalidTransaction, in.ProductID)
		}
		product, ok := s.products[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", in.ProductID, store.ErrNotFound)
		}
		needed[in.ProductID] += in.Quantity
		if needed[in.ProductID] > product.CurrentStock {
			return nil, fmt.Errorf("%w for %s (available %d)", store.ErrInsufficientStock, product.Code, product.CurrentStock)
		}

		lineTotal := in.UnitPrice.Mul(units(in.Quantity))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, domain.SaleItem{
			ProductID:    in.ProductID,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			MRP:          product.SellPrice,
			LineTotal:    lineTotal,
			RemainingQty: in.Quantity,
			Product:      productRef(product),
		})
	}

	total, due, err := store.SaleTotals(req, subtotal)
	if err != nil {
		return nil, err
	}
	paid := req.PaidAmount
	method, err := store.PaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	at := req.SaleDate
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	saleID := s.next(seqSale)
	for i := range items {
		items[i].ID = s.next(seqSaleItem)
	}
	for productID, qty := range needed {
		product := s.products[productID]
		product.CurrentStock -= qty
		s.products[productID] = product
	}

	invoice := s.issueInvoice(domain.InvoiceTypeSale, at, saleID, 0)
	sale := &domain.Sale{
		ID:            saleID,
		SaleDate:      at,
		CustomerID:    cloneID(req.CustomerID),
		Subtotal:      subtotal,
		Discount:      req.Discount,
		Total:         total,
		PaidAmount:    paid,
		DueAmount:     due,
		RefundTotal:   decimal.Zero,
		NetTotal:      total,
		PaymentStatus: domain.PaymentStatusFor(total, paid),
		Items:         items,
		Invoices:      []domain.Invoice{invoice},
	}
	if paid.IsPositive() {
		inv := invoice
		payment := s.recordPayment(domain.Payment{
			CustomerID:    cloneID(req.CustomerID),
			SaleID:        &saleID,
			Amount:        paid,
			PaymentMethod: method,
			PaymentDate:   at,
			Invoice:       &inv,
		})
		sale.Payments = append(sale.Payments, payment)
	}

	s.sales[saleID] = sale
	if idempotencyKey != "" {
		s.salesByIdem[idempotencyKey] = saleID
	}
	view := s.saleView(sale)
	return &view, nil
}

// CreateReturn takes items back into stock and settles the refund as
// store.SplitRefund decides.
func (s *Store) CreateReturn(_ context.Context, saleID int64, req domain.ReturnRequest) (*domain.SaleReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !hasRemaining(sale) {
		return nil, fmt.Errorf("%w: all items of this sale are already returned", store.ErrInvalidTransaction)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: select at least one item to return", store.ErrInvalidTransaction)
	}

	method, err := store.RefundMethod(req)
	if err != nil {
		return nil, err
	}

	requested := map[int64]int{}
	for _, in := range req.Items {
		if in.Quantity < 1 {
			return nil, fmt.Errorf("%w: return quantity must be at least 1", store.ErrInvalidTransaction)
		}
		requested[in.SaleItemID] += in.Quantity
	}
	for itemID := range requested {
		if !slices.ContainsFunc(sale.Items, func(item domain.SaleItem) bool { return item.ID == itemID }) {
			return nil, fmt.Errorf("%w: item %d is not part of sale %d", store.ErrInvalidTransaction, itemID, saleID)
		}
	}

	refund := decimal.Zero
	returned := make([]domain.SaleReturnItem, 0, len(requested))
	for _, item := range sale.Items {
		qty, ok := requested[item.ID]
		if !ok {
			continue
		}
		if qty > item.RemainingQty {
			return nil, fmt.Errorf("%w: only %d of item %d can be returned", store.ErrInvalidTransaction, item.RemainingQty, item.ID)
		}
		lineTotal := item.UnitPrice.Mul(units(qty))
		refund = refund.Add(lineTotal)
		returned = append(returned, domain.SaleReturnItem{
			SaleItemID: item.ID,
			Quantity:   qty,
			LineTotal:  lineTotal,
			Product:    item.Product,
		})
	}
	// A bill-level discount can make line prices exceed what is still owed.
	refund = decimal.Min(refund, sale.Total.Sub(sale.RefundTotal))

	for i, item := range sale.Items {
		qty := requested[item.ID]
		if qty == 0 {
			continue
		}
		sale.Items[i].RemainingQty -= qty
		if product, ok := s.products[item.ProductID]; ok {
			product.CurrentStock += qty
			s.products[item.ProductID] = product
		}
	}

	paidOut, adjusted := store.SplitRefund(refund, sale.PaidAmount, sale.DueAmount, method)
	sale.PaidAmount = sale.PaidAmount.Sub(paidOut)
	sale.DueAmount = sale.DueAmount.Sub(adjusted)
	sale.RefundTotal = sale.RefundTotal.Add(refund)
	sale.NetTotal = sale.Total.Sub(sale.RefundTotal)
	sale.PaymentStatus = domain.PaymentStatusFor(sale.NetTotal, sale.PaidAmount)

	at := time.Now().UTC()
	returnID := s.next(seqReturn)
	invoice := s.issueInvoice(domain.InvoiceTypeRefund, at, saleID, returnID)
	inv := invoice
	ret := domain.SaleReturn{
		ID:           returnID,
		SaleID:       saleID,
		ReturnDate:   at,
		RefundAmount: refund,
		Reason:       strings.TrimSpace(req.Reason),
		Items:        returned,
		Invoice:      &inv,
	}
	if method != "" {
		m := method
		ret.RefundMethod = &m
	}

	if paidOut.IsPositive() {
		payMethod := method
		if payMethod == "" {
			payMethod = domain.PaymentMethodCash
		}
		refInv := invoice
		id := saleID
		payment := s.recordPayment(domain.Payment{
			CustomerID:    cloneID(sale.CustomerID),
			SaleID:        &id,
			Amount:        paidOut.Neg(),
			PaymentMethod: payMethod,
			PaymentDate:   at,
			Invoice:       &refInv,
		})
		sale.Payments = append(sale.Payments, payment)
	}
	sale.Returns = append(sale.Returns, ret)
	sale.Invoices = append(sale.Invoices, invoice)

	out := cloneReturn(ret)
	return &out, nil
}

// CreatePayment collects part of a customer's due. The amount is applied to
// the customer's open sales oldest first.
func (s *Store) CreatePayment(_ context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[req.CustomerID]; !exists {
		return nil, fmt.Errorf("customer %d: %w", req.CustomerID, store.ErrNotFound)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", store.ErrInvalidTransaction)
	}
	due := s.customerDue(req.CustomerID)
	if req.Amount.GreaterThan(due) {
		return nil, fmt.Errorf("%w: amount exceeds due balance %s", store.ErrInvalidTransaction, due.StringFixed(2))
	}
	method, err := store.PaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	open := make([]*domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == req.CustomerID && sale.DueAmount.IsPositive() {
			open = append(open, sale)
		}
	}
	slices.SortFunc(open, func(a, b *domain.Sale) int {
		if !a.SaleDate.Equal(b.SaleDate) {
			return a.SaleDate.Compare(b.SaleDate)
		}
		return cmpInt64(a.ID, b.ID)
	})

	customerID := req.CustomerID
	payment := s.recordPayment(domain.Payment{
		CustomerID:    &customerID,
		Amount:        req.Amount,
		PaymentMethod: method,
		PaymentDate:   time.Now().UTC(),
	})

	remaining := req.Amount
	for _, sale := range open {
		if !remaining.IsPositive() {
			break
		}
		applied := decimal.Min(remaining, sale.DueAmount)
		sale.PaidAmount = sale.PaidAmount.Add(applied)
		sale.DueAmount = sale.DueAmount.Sub(applied)
		sale.PaymentStatus = domain.PaymentStatusFor(sale.NetTotal, sale.PaidAmount)

		entry := clonePayment(payment)
		entry.Amount = applied
		entry.SaleID = cloneID(&sale.ID)
		sale.Payments = append(sale.Payments, entry)
		remaining = remaining.Sub(applied)
	}

	return &payment, nil
}

// saleView is a copy of the sale with the current customer details attached.
func (s *Store) saleView(sale *domain.Sale) domain.Sale {
	view := cloneSale(sale)
	view.ItemsCount = len(view.Items)
	if sale.CustomerID != nil {
		if c, ok := s.customers[*sale.CustomerID]; ok {
			view.Customer = &domain.SaleCustomer{ID: c.ID, Name: c.Name, Phone: c.Phone}
		}
	}
	return view
}

func hasRemaining(sale *domain.Sale) bool {
	for _, item := range sale.Items {
		if item.RemainingQty > 0 {
			return true
		}
	}
	return false
}
