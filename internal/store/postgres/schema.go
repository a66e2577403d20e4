package postgres

// schema is applied in order by Migrate. Money columns are NUMERIC so that
// decimal.Decimal round-trips without float rounding.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id            BIGSERIAL PRIMARY KEY,
		code          TEXT NOT NULL,
		name          TEXT NOT NULL,
		category      TEXT NOT NULL,
		gender        TEXT NOT NULL DEFAULT 'unisex',
		size          TEXT NOT NULL DEFAULT '',
		color         TEXT NOT NULL DEFAULT '',
		buy_price     NUMERIC(12,2) NOT NULL DEFAULT 0,
		sell_price    NUMERIC(12,2) NOT NULL DEFAULT 0,
		current_stock INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS products_code_key ON products (upper(code))`,

	`CREATE TABLE IF NOT EXISTS customers (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		phone      TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		address    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS purchases (
		id            BIGSERIAL PRIMARY KEY,
		purchase_date DATE NOT NULL,
		supplier      TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_items (
		id          BIGSERIAL PRIMARY KEY,
		purchase_id BIGINT NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
		product_id  BIGINT NOT NULL REFERENCES products(id),
		quantity    INTEGER NOT NULL CHECK (quantity > 0),
		unit_price  NUMERIC(12,2) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sales (
		id              BIGSERIAL PRIMARY KEY,
		sale_date       TIMESTAMPTZ NOT NULL,
		customer_id     BIGINT REFERENCES customers(id),
		subtotal        NUMERIC(12,2) NOT NULL,
		discount        NUMERIC(12,2) NOT NULL DEFAULT 0,
		total           NUMERIC(12,2) NOT NULL,
		paid_amount     NUMERIC(12,2) NOT NULL,
		due_amount      NUMERIC(12,2) NOT NULL,
		refund_total    NUMERIC(12,2) NOT NULL DEFAULT 0,
		idempotency_key TEXT UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS sales_customer_idx ON sales (customer_id)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id            BIGSERIAL PRIMARY KEY,
		sale_id       BIGINT NOT NULL REFERENCES sales(id),
		product_id    BIGINT NOT NULL REFERENCES products(id),
		quantity      INTEGER NOT NULL CHECK (quantity > 0),
		unit_price    NUMERIC(12,2) NOT NULL,
		mrp           NUMERIC(12,2) NOT NULL,
		remaining_qty INTEGER NOT NULL CHECK (remaining_qty >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS sale_returns (
		id            BIGSERIAL PRIMARY KEY,
		sale_id       BIGINT NOT NULL REFERENCES sales(id),
		return_date   TIMESTAMPTZ NOT NULL,
		refund_method TEXT,
		refund_amount NUMERIC(12,2) NOT NULL,
		reason        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sale_return_items (
		id           BIGSERIAL PRIMARY KEY,
		return_id    BIGINT NOT NULL REFERENCES sale_returns(id),
		sale_item_id BIGINT NOT NULL REFERENCES sale_items(id),
		quantity     INTEGER NOT NULL CHECK (quantity > 0),
		line_total   NUMERIC(12,2) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id             BIGSERIAL PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		type           TEXT NOT NULL,
		sale_id        BIGINT NOT NULL REFERENCES sales(id),
		return_id      BIGINT REFERENCES sale_returns(id),
		issued_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             BIGSERIAL PRIMARY KEY,
		receipt_no     TEXT NOT NULL UNIQUE,
		customer_id    BIGINT REFERENCES customers(id),
		sale_id        BIGINT REFERENCES sales(id),
		invoice_id     BIGINT REFERENCES invoices(id),
		amount         NUMERIC(12,2) NOT NULL,
		payment_method TEXT NOT NULL,
		payment_date   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payments_customer_idx ON payments (customer_id)`,
	`CREATE TABLE IF NOT EXISTS payment_allocations (
		payment_id BIGINT NOT NULL REFERENCES payments(id),
		sale_id    BIGINT NOT NULL REFERENCES sales(id),
		amount     NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (payment_id, sale_id)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		username   TEXT PRIMARY KEY,
		password   TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT 'staff',
		active     BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
