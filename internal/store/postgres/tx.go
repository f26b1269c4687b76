package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/xid"
)

// pgTx locks every product, batch, supplier, wallet and purchase row it reads
// so concurrent units touching the same rows queue behind each other.
type pgTx struct {
	q querier
}

var _ store.Tx = (*pgTx)(nil)

// walletPoolColumns maps pools onto fixed column names; nothing else is ever
// interpolated into the wallet statements.
var walletPoolColumns = map[domain.WalletPool]string{
	domain.PoolCash:      "cash",
	domain.PoolBank:      "bank",
	domain.PoolEasyPaisa: "easy_paisa",
	domain.PoolJazzCash:  "jazz_cash",
}

func (t *pgTx) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return getProduct(ctx, t.q, productID, true)
}

func (t *pgTx) UpdateProductStock(ctx context.Context, productID string, stock int) error {
	return updateProductStock(ctx, t.q, productID, stock)
}

func (t *pgTx) UpdateProductPricing(ctx context.Context, productID string, lastBuyingRate decimal.Decimal, retailPrice decimal.Decimal) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE products
		SET last_buying_rate = $1, retail_price = $2, updated_at = now()
		WHERE id = $3
	`, lastBuyingRate, retailPrice, productID)
	if err != nil {
		return err
	}
	return expectOne(res, "product %s", productID)
}

func (t *pgTx) CreateBatch(ctx context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error) {
	if batch.ProductID == "" || batch.OriginalQuantity < 1 || batch.Quantity < 0 {
		return nil, store.Invalid("batch requires a product and a positive quantity")
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = batch.CreatedAt
	}
	batch.Status = domain.BatchStatusFor(batch.Quantity, batch.OriginalQuantity)

	row := t.q.QueryRowContext(ctx, `
		INSERT INTO inventory_batches (
			id, product_id, purchase_id, original_quantity, quantity,
			buying_rate, selling_price, status, expiry_date, received_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+batchColumns,
		batch.ID, batch.ProductID, batch.PurchaseID, batch.OriginalQuantity, batch.Quantity,
		batch.BuyingRate, batch.SellingPrice, string(batch.Status), nullDate(batch.ExpiryDate), batch.ReceivedAt, batch.CreatedAt)
	created, err := scanBatch(row)
	if err != nil {
		return nil, translate(err)
	}
	return created, nil
}

func (t *pgTx) GetBatch(ctx context.Context, batchID string) (*domain.InventoryBatch, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM inventory_batches WHERE id = $1 FOR UPDATE`, batchID)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("batch %s", batchID)
	}
	return batch, err
}

func (t *pgTx) ListActiveBatches(ctx context.Context, productID string) ([]domain.InventoryBatch, error) {
	return listBatches(ctx, t.q, productID, false, true)
}

func (t *pgTx) UpdateBatchQuantity(ctx context.Context, batchID string, quantity int, status domain.BatchStatus) error {
	if quantity < 0 {
		return store.Invalid("batch %s quantity cannot go below zero", batchID)
	}
	res, err := t.q.ExecContext(ctx, `UPDATE inventory_batches SET quantity = $1, status = $2 WHERE id = $3`, quantity, string(status), batchID)
	if err != nil {
		return err
	}
	return expectOne(res, "batch %s", batchID)
}

func (t *pgTx) DeleteBatch(ctx context.Context, batchID string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM inventory_batches WHERE id = $1`, batchID)
	if err != nil {
		return err
	}
	return expectOne(res, "batch %s", batchID)
}

func (t *pgTx) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	return getSupplier(ctx, t.q, supplierID, true)
}

func (t *pgTx) AdjustSupplierBalance(ctx context.Context, supplierID string, delta decimal.Decimal) (*domain.Supplier, error) {
	row := t.q.QueryRowContext(ctx, `
		UPDATE suppliers SET balance = balance + $1
		WHERE id = $2
		RETURNING `+supplierColumns, delta, supplierID)
	supplier, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("supplier %s", supplierID)
	}
	return supplier, err
}

func (t *pgTx) GetWallet(ctx context.Context) (*domain.Wallet, error) {
	return getWallet(ctx, t.q, true)
}

func (t *pgTx) AdjustWallet(ctx context.Context, pool domain.WalletPool, delta decimal.Decimal) (*domain.Wallet, error) {
	column, ok := walletPoolColumns[pool]
	if !ok {
		return nil, store.Invalid("unknown wallet pool %q", pool)
	}
	row := t.q.QueryRowContext(ctx, `
		UPDATE wallet
		SET `+column+` = `+column+` + $1, version = version + 1, updated_at = now()
		WHERE id = 1
		RETURNING `+walletColumns, delta)
	wallet, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("wallet")
	}
	return wallet, err
}

func (t *pgTx) CreateTransaction(ctx context.Context, entry domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	if entry.Type == "" || entry.Reference == "" || entry.ReferenceModel == "" {
		return nil, store.Invalid("transaction requires type and reference")
	}
	if entry.ID == "" {
		entry.ID = xid.New("txn")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	row := t.q.QueryRowContext(ctx, `
		INSERT INTO ledger_transactions (id, type, reference, reference_model, amount, source, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		RETURNING `+transactionColumns,
		entry.ID, entry.Type, entry.Reference, entry.ReferenceModel, entry.Amount, entry.Source, entry.Description, entry.CreatedAt)
	created, err := scanTransaction(row)
	if err != nil {
		return nil, translate(err)
	}
	return created, nil
}

func (t *pgTx) GetTransactionByReference(ctx context.Context, referenceModel string, reference string) (*domain.LedgerTransaction, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM ledger_transactions
		WHERE reference_model = $1 AND reference = $2
		ORDER BY seq
		LIMIT 1
		FOR UPDATE
	`, referenceModel, reference)
	entry, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("transaction for %s %s", referenceModel, reference)
	}
	return entry, err
}

func (t *pgTx) UpdateTransaction(ctx context.Context, entry domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	row := t.q.QueryRowContext(ctx, `
		UPDATE ledger_transactions
		SET type = $1, amount = $2, source = $3, description = $4, updated_at = now()
		WHERE id = $5
		RETURNING `+transactionColumns,
		entry.Type, entry.Amount, entry.Source, entry.Description, entry.ID)
	updated, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("transaction %s", entry.ID)
	}
	return updated, err
}

func (t *pgTx) DeleteTransactionByReference(ctx context.Context, referenceModel string, reference string) error {
	res, err := t.q.ExecContext(ctx, `
		DELETE FROM ledger_transactions
		WHERE reference_model = $1 AND reference = $2
	`, referenceModel, reference)
	if err != nil {
		return err
	}
	return expectOne(res, "transaction for %s %s", referenceModel, reference)
}

func (t *pgTx) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.Invalid("purchase requires a supplier and items")
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	items, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, err
	}

	row := t.q.QueryRowContext(ctx, `
		INSERT INTO purchases (
			id, supplier_id, invoice_no, notes, items, total_amount, amount_paid, balance_due,
			payment_method, payment_status, received_at, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
		RETURNING `+purchaseColumns,
		purchase.ID, purchase.SupplierID, purchase.InvoiceNo, purchase.Notes, items,
		purchase.TotalAmount, purchase.AmountPaid, purchase.BalanceDue,
		string(purchase.PaymentMethod), string(purchase.PaymentStatus), purchase.ReceivedAt, purchase.CreatedAt)
	created, err := scanPurchase(row)
	if err != nil {
		return nil, translate(err)
	}
	return created, nil
}

func (t *pgTx) GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	return getPurchase(ctx, t.q, purchaseID, true)
}

func (t *pgTx) UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	items, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, err
	}
	row := t.q.QueryRowContext(ctx, `
		UPDATE purchases
		SET supplier_id = $1, invoice_no = $2, notes = $3, items = $4,
			total_amount = $5, amount_paid = $6, balance_due = $7,
			payment_method = $8, payment_status = $9, received_at = $10, updated_at = now()
		WHERE id = $11
		RETURNING `+purchaseColumns,
		purchase.SupplierID, purchase.InvoiceNo, purchase.Notes, items,
		purchase.TotalAmount, purchase.AmountPaid, purchase.BalanceDue,
		string(purchase.PaymentMethod), string(purchase.PaymentStatus), purchase.ReceivedAt, purchase.ID)
	updated, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("purchase %s", purchase.ID)
	}
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

func (t *pgTx) DeletePurchase(ctx context.Context, purchaseID string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, purchaseID)
	if err != nil {
		return err
	}
	return expectOne(res, "purchase %s", purchaseID)
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Stock, &p.LastBuyingRate, &p.RetailPrice, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanBatch(row rowScanner) (*domain.InventoryBatch, error) {
	var b domain.InventoryBatch
	var status string
	var expiry sql.NullTime
	if err := row.Scan(&b.ID, &b.ProductID, &b.PurchaseID, &b.OriginalQuantity, &b.Quantity, &b.BuyingRate, &b.SellingPrice, &status, &expiry, &b.ReceivedAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Status = domain.BatchStatus(status)
	if expiry.Valid {
		e := expiry.Time.UTC()
		b.ExpiryDate = &e
	}
	return &b, nil
}

func scanSupplier(row rowScanner) (*domain.Supplier, error) {
	var s domain.Supplier
	if err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.Balance, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := row.Scan(&w.Cash, &w.Bank, &w.EasyPaisa, &w.JazzCash, &w.Version, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row rowScanner) (*domain.LedgerTransaction, error) {
	var e domain.LedgerTransaction
	if err := row.Scan(&e.ID, &e.Type, &e.Reference, &e.ReferenceModel, &e.Amount, &e.Source, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanPurchase(row rowScanner) (*domain.Purchase, error) {
	var p domain.Purchase
	var items []byte
	var method, status string
	if err := row.Scan(&p.ID, &p.SupplierID, &p.InvoiceNo, &p.Notes, &items, &p.TotalAmount, &p.AmountPaid, &p.BalanceDue, &method, &status, &p.ReceivedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &p.Items); err != nil {
		return nil, err
	}
	p.PaymentMethod = domain.PaymentMethod(method)
	p.PaymentStatus = domain.PaymentStatus(status)
	return &p, nil
}
