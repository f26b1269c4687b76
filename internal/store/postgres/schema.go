package postgres

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id               TEXT PRIMARY KEY,
	sku              TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	stock            INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	last_buying_rate NUMERIC NOT NULL DEFAULT 0,
	retail_price     NUMERIC NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL DEFAULT '',
	balance    NUMERIC NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS inventory_batches (
	id                TEXT PRIMARY KEY,
	seq               BIGSERIAL,
	product_id        TEXT NOT NULL REFERENCES products(id),
	purchase_id       TEXT NOT NULL DEFAULT '',
	original_quantity INTEGER NOT NULL CHECK (original_quantity > 0),
	quantity          INTEGER NOT NULL CHECK (quantity >= 0),
	buying_rate       NUMERIC NOT NULL,
	selling_price     NUMERIC NOT NULL,
	status            TEXT NOT NULL,
	expiry_date       DATE,
	received_at       TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS inventory_batches_fifo_idx
	ON inventory_batches (product_id, received_at, created_at, seq)
	WHERE status <> 'finished';

CREATE TABLE IF NOT EXISTS wallet (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	cash       NUMERIC NOT NULL DEFAULT 0,
	bank       NUMERIC NOT NULL DEFAULT 0,
	easy_paisa NUMERIC NOT NULL DEFAULT 0,
	jazz_cash  NUMERIC NOT NULL DEFAULT 0,
	version    BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
INSERT INTO wallet (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS ledger_transactions (
	id              TEXT PRIMARY KEY,
	seq             BIGSERIAL,
	type            TEXT NOT NULL,
	reference       TEXT NOT NULL,
	reference_model TEXT NOT NULL,
	amount          NUMERIC NOT NULL,
	source          TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS ledger_transactions_purchase_ref_idx
	ON ledger_transactions (reference_model, reference)
	WHERE reference_model = 'Purchase';

CREATE TABLE IF NOT EXISTS purchases (
	id             TEXT PRIMARY KEY,
	supplier_id    TEXT NOT NULL REFERENCES suppliers(id),
	invoice_no     TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	items          JSONB NOT NULL,
	total_amount   NUMERIC NOT NULL,
	amount_paid    NUMERIC NOT NULL,
	balance_due    NUMERIC NOT NULL,
	payment_method TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	received_at    TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (total_amount = amount_paid + balance_due)
);
CREATE INDEX IF NOT EXISTS purchases_supplier_idx ON purchases (supplier_id, created_at DESC);

CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the ledger tables and the wallet row if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
