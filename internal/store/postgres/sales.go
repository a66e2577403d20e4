package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
	"shopdesk/internal/store"
	"shopdesk/internal/xid"
)

const paymentQuery = `
	SELECT p.id, p.receipt_no, p.customer_id, p.sale_id, p.amount, p.payment_method, p.payment_date,
	       i.id, i.invoice_number, i.type
	FROM payments p
	LEFT JOIN invoices i ON i.id = p.invoice_id
`

func scanPayment(row scanner) (domain.Payment, error) {
	var (
		p          domain.Payment
		customerID sql.NullInt64
		saleID     sql.NullInt64
		invoiceID  sql.NullInt64
		number     sql.NullString
		kind       sql.NullString
	)
	err := row.Scan(&p.ID, &p.ReceiptNo, &customerID, &saleID, &p.Amount, &p.PaymentMethod, &p.PaymentDate,
		&invoiceID, &number, &kind)
	if err != nil {
		return p, err
	}
	p.CustomerID = idPtr(customerID)
	p.SaleID = idPtr(saleID)
	p.PaymentDate = p.PaymentDate.UTC()
	if invoiceID.Valid {
		p.Invoice = &domain.Invoice{ID: invoiceID.Int64, InvoiceNumber: number.String, Type: kind.String}
	}
	return p, nil
}

func (s *Store) ListSales(ctx context.Context, customerID *int64) ([]domain.Sale, error) {
	query := `SELECT id FROM sales ORDER BY sale_date DESC, id DESC`
	args := []any{}
	if customerID != nil {
		query = `SELECT id FROM sales WHERE customer_id = $1 ORDER BY sale_date DESC, id DESC`
		args = append(args, *customerID)
	}
	ids, err := queryIDs(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}

	sales := make([]domain.Sale, 0, len(ids))
	for _, id := range ids {
		sale, err := loadSale(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	return loadSale(ctx, s.db, id)
}

// CreateSale records a bill, takes the stock out and issues the invoice and,
// when something was paid, the payment receipt. A repeated idempotency key
// returns the sale recorded the first time.
func (s *Store) CreateSale(ctx context.Context, req domain.SaleRequest, idempotencyKey string) (*domain.Sale, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.saleByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidTransaction)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if req.CustomerID != nil {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, *req.CustomerID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("customer %d: %w", *req.CustomerID, store.ErrNotFound)
		}
	}

	productIDs := make([]int64, 0, len(req.Items))
	for _, in := range req.Items {
		productIDs = append(productIDs, in.ProductID)
	}
	products, err := lockProducts(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}

	needed := map[int64]int{}
	subtotal := decimal.Zero
	for _, in := range req.Items {
		if in.Quantity < 1 || in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: invalid line for product %d", store.ErrInvalidTransaction, in.ProductID)
		}
		product, ok := products[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", in.ProductID, store.ErrNotFound)
		}
		needed[in.ProductID] += in.Quantity
		if needed[in.ProductID] > product.CurrentStock {
			return nil, fmt.Errorf("%w for %s (available %d)", store.ErrInsufficientStock, product.Code, product.CurrentStock)
		}
		subtotal = subtotal.Add(in.UnitPrice.Mul(units(in.Quantity)))
	}

	total, due, err := store.SaleTotals(req, subtotal)
	if err != nil {
		return nil, err
	}
	method, err := store.PaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	at := req.SaleDate
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	var saleID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (sale_date, customer_id, subtotal, discount, total, paid_amount, due_amount, refund_total, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		RETURNING id
	`, at, nullID(req.CustomerID), subtotal, req.Discount, total, req.PaidAmount, due, nullIfEmpty(idempotencyKey)).Scan(&saleID)
	if err != nil {
		if idempotencyKey != "" && isUniqueViolation(err) {
			return s.saleByIdempotencyKey(ctx, idempotencyKey)
		}
		return nil, err
	}

	for _, in := range req.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, mrp, remaining_qty)
			VALUES ($1, $2, $3, $4, $5, $3)
		`, saleID, in.ProductID, in.Quantity, in.UnitPrice, products[in.ProductID].SellPrice); err != nil {
			return nil, err
		}
	}
	for productID, qty := range needed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET current_stock = current_stock - $2, updated_at = now()
			WHERE id = $1
		`, productID, qty); err != nil {
			return nil, err
		}
	}

	invoice, err := issueInvoice(ctx, tx, domain.InvoiceTypeSale, at, saleID, nil)
	if err != nil {
		return nil, err
	}
	if req.PaidAmount.IsPositive() {
		if _, err := recordPayment(ctx, tx, domain.Payment{
			CustomerID:    req.CustomerID,
			SaleID:        &saleID,
			Amount:        req.PaidAmount,
			PaymentMethod: method,
			PaymentDate:   at,
			Invoice:       &invoice,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loadSale(ctx, s.db, saleID)
}

func (s *Store) saleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM sales WHERE idempotency_key = $1`, key).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return loadSale(ctx, s.db, id)
}

type lockedSaleItem struct {
	id           int64
	productID    int64
	unitPrice    decimal.Decimal
	remainingQty int
}

// CreateReturn takes items back into stock and settles the refund as
// store.SplitRefund decides.
func (s *Store) CreateReturn(ctx context.Context, saleID int64, req domain.ReturnRequest) (*domain.SaleReturn, error) {
	method, err := store.RefundMethod(req)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		customerID                        sql.NullInt64
		total, paid, due, refundedAlready decimal.Decimal
	)
	err = tx.QueryRowContext(ctx, `
		SELECT customer_id, total, paid_amount, due_amount, refund_total
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&customerID, &total, &paid, &due, &refundedAlready)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := lockSaleItems(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	remaining := 0
	for _, item := range items {
		remaining += item.remainingQty
	}
	if remaining == 0 {
		return nil, fmt.Errorf("%w: all items of this sale are already returned", store.ErrInvalidTransaction)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: select at least one item to return", store.ErrInvalidTransaction)
	}

	requested := map[int64]int{}
	for _, in := range req.Items {
		if in.Quantity < 1 {
			return nil, fmt.Errorf("%w: return quantity must be at least 1", store.ErrInvalidTransaction)
		}
		requested[in.SaleItemID] += in.Quantity
	}
	byID := make(map[int64]lockedSaleItem, len(items))
	for _, item := range items {
		byID[item.id] = item
	}
	for itemID := range requested {
		if _, ok := byID[itemID]; !ok {
			return nil, fmt.Errorf("%w: item %d is not part of sale %d", store.ErrInvalidTransaction, itemID, saleID)
		}
	}

	refund := decimal.Zero
	for _, item := range items {
		qty, ok := requested[item.id]
		if !ok {
			continue
		}
		if qty > item.remainingQty {
			return nil, fmt.Errorf("%w: only %d of item %d can be returned", store.ErrInvalidTransaction, item.remainingQty, item.id)
		}
		refund = refund.Add(item.unitPrice.Mul(units(qty)))
	}
	// A bill-level discount can make line prices exceed what is still owed.
	refund = decimal.Min(refund, total.Sub(refundedAlready))

	for _, item := range items {
		qty := requested[item.id]
		if qty == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sale_items SET remaining_qty = remaining_qty - $2 WHERE id = $1`, item.id, qty); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET current_stock = current_stock + $2, updated_at = now()
			WHERE id = $1
		`, item.productID, qty); err != nil {
			return nil, err
		}
	}

	paidOut, adjusted := store.SplitRefund(refund, paid, due, method)
	if _, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET paid_amount = paid_amount - $2, due_amount = due_amount - $3, refund_total = refund_total + $4
		WHERE id = $1
	`, saleID, paidOut, adjusted, refund); err != nil {
		return nil, err
	}

	at := time.Now().UTC()
	var returnID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sale_returns (sale_id, return_date, refund_method, refund_amount, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, saleID, at, nullIfEmpty(method), refund, strings.TrimSpace(req.Reason)).Scan(&returnID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		qty := requested[item.id]
		if qty == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_return_items (return_id, sale_item_id, quantity, line_total)
			VALUES ($1, $2, $3, $4)
		`, returnID, item.id, qty, item.unitPrice.Mul(units(qty))); err != nil {
			return nil, err
		}
	}

	invoice, err := issueInvoice(ctx, tx, domain.InvoiceTypeRefund, at, saleID, &returnID)
	if err != nil {
		return nil, err
	}
	if paidOut.IsPositive() {
		payMethod := method
		if payMethod == "" {
			payMethod = domain.PaymentMethodCash
		}
		if _, err := recordPayment(ctx, tx, domain.Payment{
			CustomerID:    idPtr(customerID),
			SaleID:        &saleID,
			Amount:        paidOut.Neg(),
			PaymentMethod: payMethod,
			PaymentDate:   at,
			Invoice:       &invoice,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale, err := loadSale(ctx, s.db, saleID)
	if err != nil {
		return nil, err
	}
	for _, ret := range sale.Returns {
		if ret.ID == returnID {
			return &ret, nil
		}
	}
	return nil, store.ErrNotFound
}

// CreatePayment collects part of a customer's due. The amount is applied to
// the customer's open sales oldest first.
func (s *Store) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, req.CustomerID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("customer %d: %w", req.CustomerID, store.ErrNotFound)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", store.ErrInvalidTransaction)
	}

	type openSale struct {
		id  int64
		due decimal.Decimal
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT id, due_amount
		FROM sales
		WHERE customer_id = $1 AND due_amount > 0
		ORDER BY sale_date, id
		FOR UPDATE
	`, req.CustomerID)
	if err != nil {
		return nil, err
	}
	open := make([]openSale, 0, 8)
	due := decimal.Zero
	for rows.Next() {
		var o openSale
		if err := rows.Scan(&o.id, &o.due); err != nil {
			rows.Close()
			return nil, err
		}
		open = append(open, o)
		due = due.Add(o.due)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if req.Amount.GreaterThan(due) {
		return nil, fmt.Errorf("%w: amount exceeds due balance %s", store.ErrInvalidTransaction, due.StringFixed(2))
	}
	method, err := store.PaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	customerID := req.CustomerID
	payment, err := recordPayment(ctx, tx, domain.Payment{
		CustomerID:    &customerID,
		Amount:        req.Amount,
		PaymentMethod: method,
		PaymentDate:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	left := req.Amount
	for _, sale := range open {
		if !left.IsPositive() {
			break
		}
		applied := decimal.Min(left, sale.due)
		if _, err := tx.ExecContext(ctx, `
			UPDATE sales SET paid_amount = paid_amount + $2, due_amount = due_amount - $2
			WHERE id = $1
		`, sale.id, applied); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payment_allocations (payment_id, sale_id, amount)
			VALUES ($1, $2, $3)
		`, payment.ID, sale.id, applied); err != nil {
			return nil, err
		}
		left = left.Sub(applied)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.InvoiceDocument, error) {
	var (
		doc      domain.InvoiceDocument
		saleID   int64
		returnID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, type, sale_id, return_id, issued_at
		FROM invoices
		WHERE id = $1
	`, id).Scan(&doc.Invoice.ID, &doc.Invoice.InvoiceNumber, &doc.Invoice.Type, &saleID, &returnID, &doc.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	doc.IssuedAt = doc.IssuedAt.UTC()

	sale, err := loadSale(ctx, s.db, saleID)
	if err != nil {
		return nil, err
	}
	doc.Sale = *sale
	if returnID.Valid {
		for _, ret := range sale.Returns {
			if ret.ID == returnID.Int64 {
				doc.Return = &ret
				break
			}
		}
	}
	return &doc, nil
}

func (s *Store) GetReceipt(ctx context.Context, receiptNo string) (*domain.ReceiptDocument, error) {
	payment, err := scanPayment(s.db.QueryRowContext(ctx, paymentQuery+` WHERE p.receipt_no = $1`, receiptNo))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	doc := &domain.ReceiptDocument{Payment: payment}
	if payment.CustomerID != nil {
		customer, err := s.GetCustomer(ctx, *payment.CustomerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		doc.Customer = customer
	}
	if payment.SaleID != nil {
		sale, err := loadSale(ctx, s.db, *payment.SaleID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		doc.Sale = sale
	}
	return doc, nil
}

// loadSale assembles the full sale view: lines, payments, returns and
// invoices. Every query is drained before the next one runs so it can be
// used inside a transaction.
func loadSale(ctx context.Context, q querier, id int64) (*domain.Sale, error) {
	var (
		sale          domain.Sale
		customerID    sql.NullInt64
		customerName  sql.NullString
		customerPhone sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT s.id, s.sale_date, s.customer_id, c.name, c.phone,
		       s.subtotal, s.discount, s.total, s.paid_amount, s.due_amount, s.refund_total
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		WHERE s.id = $1
	`, id).Scan(&sale.ID, &sale.SaleDate, &customerID, &customerName, &customerPhone,
		&sale.Subtotal, &sale.Discount, &sale.Total, &sale.PaidAmount, &sale.DueAmount, &sale.RefundTotal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.SaleDate = sale.SaleDate.UTC()
	sale.CustomerID = idPtr(customerID)
	if customerID.Valid {
		sale.Customer = &domain.SaleCustomer{ID: customerID.Int64, Name: customerName.String, Phone: customerPhone.String}
	}
	sale.NetTotal = sale.Total.Sub(sale.RefundTotal)
	sale.PaymentStatus = domain.PaymentStatusFor(sale.NetTotal, sale.PaidAmount)

	if sale.Items, err = saleItems(ctx, q, id); err != nil {
		return nil, err
	}
	sale.ItemsCount = len(sale.Items)
	if sale.Payments, err = salePayments(ctx, q, id); err != nil {
		return nil, err
	}
	if sale.Returns, err = saleReturns(ctx, q, id); err != nil {
		return nil, err
	}
	if sale.Invoices, err = saleInvoices(ctx, q, id); err != nil {
		return nil, err
	}
	return &sale, nil
}

func saleItems(ctx context.Context, q querier, saleID int64) ([]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT si.id, si.product_id, si.quantity, si.unit_price, si.mrp, si.remaining_qty,
		       p.code, p.name, p.size, p.color, p.sell_price
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var (
			item domain.SaleItem
			ref  domain.ProductRef
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.MRP, &item.RemainingQty,
			&ref.Code, &ref.Name, &ref.Size, &ref.Color, &ref.SellPrice); err != nil {
			return nil, err
		}
		ref.ID = item.ProductID
		item.Product = &ref
		item.LineTotal = item.UnitPrice.Mul(units(item.Quantity))
		items = append(items, item)
	}
	return items, rows.Err()
}

// salePayments lists money recorded against the sale directly and the shares
// of customer due payments applied to it.
func salePayments(ctx context.Context, q querier, saleID int64) ([]domain.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.receipt_no, p.customer_id, p.sale_id, p.amount, p.payment_method, p.payment_date,
		       i.id, i.invoice_number, i.type
		FROM payments p
		LEFT JOIN invoices i ON i.id = p.invoice_id
		WHERE p.sale_id = $1
		UNION ALL
		SELECT p.id, p.receipt_no, p.customer_id, a.sale_id, a.amount, p.payment_method, p.payment_date,
		       NULL::BIGINT, NULL::TEXT, NULL::TEXT
		FROM payment_allocations a
		JOIN payments p ON p.id = a.payment_id
		WHERE a.sale_id = $1
		ORDER BY 7, 1
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 4)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func saleReturns(ctx context.Context, q querier, saleID int64) ([]domain.SaleReturn, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.return_date, r.refund_method, r.refund_amount, r.reason,
		       i.id, i.invoice_number, i.type
		FROM sale_returns r
		LEFT JOIN invoices i ON i.return_id = r.id
		WHERE r.sale_id = $1
		ORDER BY r.id
	`, saleID)
	if err != nil {
		return nil, err
	}
	returns := make([]domain.SaleReturn, 0)
	index := map[int64]int{}
	for rows.Next() {
		var (
			ret       domain.SaleReturn
			method    sql.NullString
			invoiceID sql.NullInt64
			number    sql.NullString
			kind      sql.NullString
		)
		if err := rows.Scan(&ret.ID, &ret.ReturnDate, &method, &ret.RefundAmount, &ret.Reason,
			&invoiceID, &number, &kind); err != nil {
			rows.Close()
			return nil, err
		}
		ret.SaleID = saleID
		ret.ReturnDate = ret.ReturnDate.UTC()
		if method.Valid && method.String != "" {
			m := method.String
			ret.RefundMethod = &m
		}
		if invoiceID.Valid {
			ret.Invoice = &domain.Invoice{ID: invoiceID.Int64, InvoiceNumber: number.String, Type: kind.String}
		}
		ret.Items = []domain.SaleReturnItem{}
		index[ret.ID] = len(returns)
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(returns) == 0 {
		return nil, nil
	}

	rows, err = q.QueryContext(ctx, `
		SELECT ri.return_id, ri.id, ri.sale_item_id, ri.quantity, ri.line_total,
		       p.id, p.code, p.name, p.size, p.color, p.sell_price
		FROM sale_return_items ri
		JOIN sale_returns r ON r.id = ri.return_id
		JOIN sale_items si ON si.id = ri.sale_item_id
		JOIN products p ON p.id = si.product_id
		WHERE r.sale_id = $1
		ORDER BY ri.id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			returnID int64
			item     domain.SaleReturnItem
			ref      domain.ProductRef
		)
		if err := rows.Scan(&returnID, &item.ID, &item.SaleItemID, &item.Quantity, &item.LineTotal,
			&ref.ID, &ref.Code, &ref.Name, &ref.Size, &ref.Color, &ref.SellPrice); err != nil {
			return nil, err
		}
		item.Product = &ref
		if i, ok := index[returnID]; ok {
			returns[i].Items = append(returns[i].Items, item)
		}
	}
	return returns, rows.Err()
}

func saleInvoices(ctx context.Context, q querier, saleID int64) ([]domain.Invoice, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_number, type FROM invoices WHERE sale_id = $1 ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 2)
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.Type); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func lockProducts(ctx context.Context, q querier, ids []int64) (map[int64]domain.Product, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[int64]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func lockSaleItems(ctx context.Context, q querier, saleID int64) ([]lockedSaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, unit_price, remaining_qty
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
		FOR UPDATE
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]lockedSaleItem, 0, 8)
	for rows.Next() {
		var item lockedSaleItem
		if err := rows.Scan(&item.id, &item.productID, &item.unitPrice, &item.remainingQty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// issueInvoice reserves the next invoice id first so the number can embed it.
func issueInvoice(ctx context.Context, q querier, kind string, at time.Time, saleID int64, returnID *int64) (domain.Invoice, error) {
	prefix := "INV"
	if kind == domain.InvoiceTypeRefund {
		prefix = "RF"
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT nextval(pg_get_serial_sequence('invoices', 'id'))`).Scan(&id); err != nil {
		return domain.Invoice{}, err
	}
	invoice := domain.Invoice{ID: id, InvoiceNumber: xid.Document(prefix, at, id), Type: kind}
	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices (id, invoice_number, type, sale_id, return_id, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, invoice.ID, invoice.InvoiceNumber, invoice.Type, saleID, nullID(returnID), at)
	if err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

// recordPayment numbers a receipt and writes p to the payment journal.
func recordPayment(ctx context.Context, q querier, p domain.Payment) (domain.Payment, error) {
	if err := q.QueryRowContext(ctx, `SELECT nextval(pg_get_serial_sequence('payments', 'id'))`).Scan(&p.ID); err != nil {
		return domain.Payment{}, err
	}
	p.ReceiptNo = xid.Document("RCPT", p.PaymentDate, p.ID)

	var invoiceID any
	if p.Invoice != nil {
		invoiceID = p.Invoice.ID
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (id, receipt_no, customer_id, sale_id, invoice_id, amount, payment_method, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.ReceiptNo, nullID(p.CustomerID), nullID(p.SaleID), invoiceID, p.Amount, p.PaymentMethod, p.PaymentDate)
	if err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0, 64)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func units(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
