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
)

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.purchase_date, p.supplier,
		       COUNT(i.id), COALESCE(SUM(i.quantity), 0), COALESCE(SUM(i.quantity * i.unit_price), 0)
		FROM purchases p
		LEFT JOIN purchase_items i ON i.purchase_id = p.id
		GROUP BY p.id
		ORDER BY p.purchase_date DESC, p.id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		var (
			p    domain.Purchase
			date time.Time
		)
		if err := rows.Scan(&p.ID, &date, &p.Supplier, &p.ItemsCount, &p.TotalItems, &p.TotalAmount); err != nil {
			return nil, err
		}
		p.PurchaseDate = date.Format(time.DateOnly)
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	return loadPurchase(ctx, s.db, id)
}

// CreatePurchase stocks in a supplier delivery. Lines may register new
// products inline; those start at zero stock and receive the line quantity.
func (s *Store) CreatePurchase(ctx context.Context, in domain.PurchaseInput) (*domain.Purchase, error) {
	date, err := store.PurchaseDate(in.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase has no items", store.ErrInvalidTransaction)
	}
	newCodes := map[string]bool{}
	existingIDs := make([]int64, 0, len(in.Items))
	for i, item := range in.Items {
		if err := store.ValidatePurchaseLine(i, item); err != nil {
			return nil, err
		}
		if item.ProductID != nil {
			existingIDs = append(existingIDs, *item.ProductID)
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(item.Product.Code))
		if newCodes[code] {
			return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, code)
		}
		newCodes[code] = true
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	products, err := lockProducts(ctx, tx, existingIDs)
	if err != nil {
		return nil, err
	}
	for i, item := range in.Items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := products[*item.ProductID]; !ok {
			return nil, fmt.Errorf("line %d: product %d: %w", i+1, *item.ProductID, store.ErrNotFound)
		}
	}

	var purchaseID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO purchases (purchase_date, supplier, created_at)
		VALUES ($1, $2, now())
		RETURNING id
	`, calendarDay(date), store.SupplierName(in.Supplier)).Scan(&purchaseID)
	if err != nil {
		return nil, err
	}

	for _, item := range in.Items {
		var productID int64
		if item.ProductID != nil {
			productID = *item.ProductID
			if err := stockIn(ctx, tx, productID, item.Quantity, item.UnitPrice, item.SellPrice); err != nil {
				return nil, err
			}
		} else {
			product := store.NewProduct(item)
			err := tx.QueryRowContext(ctx, `
				INSERT INTO products (code, name, category, gender, size, color, buy_price, sell_price, current_stock, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
				RETURNING id
			`, product.Code, product.Name, product.Category, product.Gender, product.Size, product.Color,
				product.BuyPrice, product.SellPrice, item.Quantity).Scan(&productID)
			if err != nil {
				if isUniqueViolation(err) {
					return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
				}
				return nil, err
			}
		}
		if err := insertPurchaseItem(ctx, tx, purchaseID, productID, item); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loadPurchase(ctx, s.db, purchaseID)
}

// UpdatePurchase replaces the lines of an existing purchase. The stock taken
// in by the old lines is reversed before the new lines are applied, and the
// whole update is rejected if that would leave any product below zero.
func (s *Store) UpdatePurchase(ctx context.Context, id int64, in domain.PurchaseInput) (*domain.Purchase, error) {
	date, err := store.PurchaseDate(in.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase has no items", store.ErrInvalidTransaction)
	}
	for i, item := range in.Items {
		if err := store.ValidatePurchaseLine(i, item); err != nil {
			return nil, err
		}
		if item.ProductID == nil {
			return nil, fmt.Errorf("%w: line %d: new products cannot be added while editing", store.ErrInvalidTransaction, i+1)
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var lockedID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM purchases WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	delta := map[int64]int{}
	rows, err := tx.QueryContext(ctx, `SELECT product_id, quantity FROM purchase_items WHERE purchase_id = $1`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var productID int64
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			rows.Close()
			return nil, err
		}
		delta[productID] -= qty
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, item := range in.Items {
		delta[*item.ProductID] += item.Quantity
	}
	ids := make([]int64, 0, len(delta))
	for productID := range delta {
		ids = append(ids, productID)
	}
	products, err := lockProducts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for i, item := range in.Items {
		if _, ok := products[*item.ProductID]; !ok {
			return nil, fmt.Errorf("line %d: product %d: %w", i+1, *item.ProductID, store.ErrNotFound)
		}
	}
	for productID, change := range delta {
		product, ok := products[productID]
		if !ok {
			continue
		}
		if product.CurrentStock+change < 0 {
			return nil, fmt.Errorf("%w for %s: %d already sold", store.ErrInsufficientStock, product.Code, -(product.CurrentStock + change))
		}
	}

	for productID, change := range delta {
		if _, ok := products[productID]; !ok || change == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET current_stock = current_stock + $2, updated_at = now()
			WHERE id = $1
		`, productID, change); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_items WHERE purchase_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE purchases SET purchase_date = $2, supplier = $3 WHERE id = $1
	`, id, calendarDay(date), store.SupplierName(in.Supplier)); err != nil {
		return nil, err
	}
	for _, item := range in.Items {
		if err := stockIn(ctx, tx, *item.ProductID, 0, item.UnitPrice, item.SellPrice); err != nil {
			return nil, err
		}
		if err := insertPurchaseItem(ctx, tx, id, *item.ProductID, item); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loadPurchase(ctx, s.db, id)
}

// stockIn adds qty to a product and takes over the purchase prices. A sell
// price is only replaced when a positive one is given.
func stockIn(ctx context.Context, q querier, productID int64, qty int, buy decimal.Decimal, sell *decimal.Decimal) error {
	newSell := decimal.Zero
	if sell != nil {
		newSell = *sell
	}
	_, err := q.ExecContext(ctx, `
		UPDATE products
		SET current_stock = current_stock + $2,
		    buy_price = $3,
		    sell_price = CASE WHEN $4::numeric > 0 THEN $4::numeric ELSE sell_price END,
		    updated_at = now()
		WHERE id = $1
	`, productID, qty, buy, newSell)
	return err
}

// calendarDay turns a date already checked by store.PurchaseDate into the
// value bound to a DATE column.
func calendarDay(date string) time.Time {
	day, _ := time.Parse(time.DateOnly, date)
	return day
}

func insertPurchaseItem(ctx context.Context, q querier, purchaseID, productID int64, item domain.PurchaseItemInput) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
	`, purchaseID, productID, item.Quantity, item.UnitPrice)
	return err
}

func loadPurchase(ctx context.Context, q querier, id int64) (*domain.Purchase, error) {
	var (
		purchase domain.Purchase
		date     time.Time
	)
	err := q.QueryRowContext(ctx, `SELECT id, purchase_date, supplier FROM purchases WHERE id = $1`, id).
		Scan(&purchase.ID, &date, &purchase.Supplier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	purchase.PurchaseDate = date.Format(time.DateOnly)

	rows, err := q.QueryContext(ctx, `
		SELECT i.id, i.product_id, i.quantity, i.unit_price,
		       p.code, p.name, p.size, p.color, p.sell_price
		FROM purchase_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.purchase_id = $1
		ORDER BY i.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item domain.PurchaseItem
			ref  domain.ProductRef
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice,
			&ref.Code, &ref.Name, &ref.Size, &ref.Color, &ref.SellPrice); err != nil {
			return nil, err
		}
		ref.ID = item.ProductID
		item.Product = &ref
		item.LineTotal = item.UnitPrice.Mul(units(item.Quantity))
		purchase.Items = append(purchase.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SummarizePurchase(&purchase)
	return &purchase, nil
}
