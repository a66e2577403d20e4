package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	"shopdesk/internal/domain"
	"shopdesk/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables the store needs. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// EnsureAdmin creates the admin account with the given password unless it
// already exists. Without a password nothing is created.
func (s *Store) EnsureAdmin(ctx context.Context, password string) error {
	if strings.TrimSpace(password) == "" {
		log.Println("[postgres-store] WARNING: no admin password given, admin account not seeded")
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ('admin', $1, 'admin', true, now())
		ON CONFLICT (username) DO NOTHING
	`, string(hash))
	return err
}

const productColumns = `id, code, name, category, gender, size, color, buy_price, sell_price, current_stock`

func scanProduct(row scanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Gender, &p.Size, &p.Color, &p.BuyPrice, &p.SellPrice, &p.CurrentStock)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	product, err := store.ProductFields(in)
	if err != nil {
		return nil, err
	}
	if in.OpeningStock != nil {
		product.CurrentStock = *in.OpeningStock
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO products (code, name, category, gender, size, color, buy_price, sell_price, current_stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id
	`, product.Code, product.Name, product.Category, product.Gender, product.Size, product.Color,
		product.BuyPrice, product.SellPrice, product.CurrentStock).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
		}
		return nil, err
	}
	return &product, nil
}

// UpdateProduct changes product details. Stock only moves through purchases,
// sales and returns.
func (s *Store) UpdateProduct(ctx context.Context, id int64, in domain.ProductInput) (*domain.Product, error) {
	product, err := store.ProductFields(in)
	if err != nil {
		return nil, err
	}
	product.ID = id

	err = s.db.QueryRowContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, category = $4, gender = $5, size = $6, color = $7,
		    buy_price = $8, sell_price = $9, updated_at = now()
		WHERE id = $1
		RETURNING current_stock
	`, id, product.Code, product.Name, product.Category, product.Gender, product.Size, product.Color,
		product.BuyPrice, product.SellPrice).Scan(&product.CurrentStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	var code string
	var referenced bool
	err := s.db.QueryRowContext(ctx, `
		SELECT code,
		       EXISTS (SELECT 1 FROM sale_items WHERE product_id = $1)
		       OR EXISTS (SELECT 1 FROM purchase_items WHERE product_id = $1)
		FROM products
		WHERE id = $1
	`, id).Scan(&code, &referenced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if referenced {
		return fmt.Errorf("%w: product %s is used in sales or purchases", store.ErrConflict, code)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: product %s is used in sales or purchases", store.ErrConflict, code)
		}
		return err
	}
	return nil
}

const customerQuery = `
	SELECT c.id, c.name, c.phone, c.email, c.address,
	       COALESCE((SELECT SUM(s.due_amount) FROM sales s WHERE s.customer_id = c.id), 0)
	FROM customers c
`

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.DueBalance)
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, customerQuery+` ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, id)
}

func getCustomer(ctx context.Context, q querier, id int64) (*domain.Customer, error) {
	c, err := scanCustomer(q.QueryRowContext(ctx, customerQuery+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, in domain.CustomerInput) (*domain.Customer, error) {
	c, err := store.CustomerFields(in)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, email, address, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`, c.Name, c.Phone, c.Email, c.Address).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, id int64, in domain.CustomerInput) (*domain.Customer, error) {
	c, err := store.CustomerFields(in)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name = $2, phone = $3, email = $4, address = $5
		WHERE id = $1
	`, id, c.Name, c.Phone, c.Email, c.Address)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomer(ctx, id)
}

func (s *Store) ListCustomerPayments(ctx context.Context, customerID int64) ([]domain.Payment, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, paymentQuery+`
		WHERE p.customer_id = $1
		ORDER BY p.payment_date DESC, p.id DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.Payment, 0, 32)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	role := user.Role
	if role == "" {
		role = "staff"
	}
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1, $2, $3, true, $4)
	`, username, user.Password, role, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
