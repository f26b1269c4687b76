package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/xid"
)

const maxTxAttempts = 3

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

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

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// WithinTx runs fn in a SERIALIZABLE transaction. Serialization failures and
// deadlocks rerun fn from scratch; after maxTxAttempts they surface as
// store.ErrConflict.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return translate(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction kept conflicting after %d attempts (%v): %w", maxTxAttempts, err, store.ErrConflict)
}

func (s *Store) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Name = strings.TrimSpace(product.Name)
	if product.SKU == "" || product.Name == "" || product.Stock < 0 {
		return nil, store.Invalid("product sku and name are required")
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, sku, name, category, stock, last_buying_rate, retail_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		RETURNING `+productColumns,
		product.ID, product.SKU, product.Name, product.Category, product.Stock, product.LastBuyingRate, product.RetailPrice)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.Invalid("sku %s already exists", product.SKU)
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return getProduct(ctx, s.db, productID, false)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY category, name`)
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
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) ListBatches(ctx context.Context, productID string, includeFinished bool) ([]domain.InventoryBatch, error) {
	if _, err := getProduct(ctx, s.db, productID, false); err != nil {
		return nil, err
	}
	return listBatches(ctx, s.db, productID, includeFinished, false)
}

func (s *Store) BatchStockByProduct(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, COALESCE(SUM(quantity), 0)
		FROM inventory_batches
		WHERE status <> 'finished'
		GROUP BY product_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int, 128)
	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		result[productID] = qty
	}
	return result, rows.Err()
}

func (s *Store) SetProductStock(ctx context.Context, productID string, stock int) error {
	return updateProductStock(ctx, s.db, productID, stock)
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.Invalid("supplier name is required")
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO suppliers (id, name, phone, balance, created_at)
		VALUES ($1,$2,$3,$4,now())
		RETURNING `+supplierColumns,
		supplier.ID, supplier.Name, supplier.Phone, supplier.Balance)
	return scanSupplier(row)
}

func (s *Store) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	return getSupplier(ctx, s.db, supplierID, false)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		supplier, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, *supplier)
	}
	return suppliers, rows.Err()
}

func (s *Store) GetWallet(ctx context.Context) (*domain.Wallet, error) {
	return getWallet(ctx, s.db, false)
}

func (s *Store) GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	return getPurchase(ctx, s.db, purchaseID, false)
}

func (s *Store) ListPurchases(ctx context.Context, supplierID string, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE ($1::text = '' OR supplier_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, supplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *purchase)
	}
	return purchases, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]domain.LedgerTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM ledger_transactions
		ORDER BY seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerTransaction, 0, limit)
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username and password are required")
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.Invalid("user %s already exists", username)
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

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

const (
	productColumns     = `id, sku, name, category, stock, last_buying_rate, retail_price, created_at, updated_at`
	batchColumns       = `id, product_id, purchase_id, original_quantity, quantity, buying_rate, selling_price, status, expiry_date, received_at, created_at`
	supplierColumns    = `id, name, phone, balance, created_at`
	walletColumns      = `cash, bank, easy_paisa, jazz_cash, version, updated_at`
	transactionColumns = `id, type, reference, reference_model, amount, source, description, created_at, updated_at`
	purchaseColumns    = `id, supplier_id, invoice_no, notes, items, total_amount, amount_paid, balance_due, payment_method, payment_status, received_at, created_at, updated_at`
)

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func getProduct(ctx context.Context, q querier, productID string, forUpdate bool) (*domain.Product, error) {
	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`+lockClause(forUpdate), productID)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("product %s", productID)
	}
	return product, err
}

func updateProductStock(ctx context.Context, q querier, productID string, stock int) error {
	if stock < 0 {
		return store.Invalid("product %s stock cannot go below zero", productID)
	}
	res, err := q.ExecContext(ctx, `UPDATE products SET stock = $1, updated_at = now() WHERE id = $2`, stock, productID)
	if err != nil {
		return err
	}
	return expectOne(res, "product %s", productID)
}

func listBatches(ctx context.Context, q querier, productID string, includeFinished bool, forUpdate bool) ([]domain.InventoryBatch, error) {
	filter := ` AND status <> 'finished'`
	if includeFinished {
		filter = ""
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+batchColumns+`
		FROM inventory_batches
		WHERE product_id = $1`+filter+`
		ORDER BY received_at, created_at, seq`+lockClause(forUpdate), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.InventoryBatch, 0, 8)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

func getSupplier(ctx context.Context, q querier, supplierID string, forUpdate bool) (*domain.Supplier, error) {
	row := q.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`+lockClause(forUpdate), supplierID)
	supplier, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("supplier %s", supplierID)
	}
	return supplier, err
}

func getWallet(ctx context.Context, q querier, forUpdate bool) (*domain.Wallet, error) {
	row := q.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallet WHERE id = 1`+lockClause(forUpdate))
	wallet, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("wallet")
	}
	return wallet, err
}

func getPurchase(ctx context.Context, q querier, purchaseID string, forUpdate bool) (*domain.Purchase, error) {
	row := q.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`+lockClause(forUpdate), purchaseID)
	purchase, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("purchase %s", purchaseID)
	}
	return purchase, err
}

func expectOne(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.NotFound(format, args...)
	}
	return nil
}

// translate maps constraint violations onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23503":
		return fmt.Errorf("%s: %w", pgErr.Message, store.ErrNotFound)
	case "23505", "23514":
		return fmt.Errorf("%s: %w", pgErr.Message, store.ErrValidation)
	case "55P03":
		return fmt.Errorf("%s: %w", pgErr.Message, store.ErrConflict)
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	t := val.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
