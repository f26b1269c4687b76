package store

import (
	"context"

	"github.com/shopspring/decimal"

	"kiranaledger/backend/internal/domain"
)

// Tx is one atomic unit of work over the five ledger stores. Every write made
// through a Tx is committed together or not at all.
type Tx interface {
	// GetProduct loads a product for update; concurrent units touching the
	// same product are serialized.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	UpdateProductStock(ctx context.Context, productID string, stock int) error
	UpdateProductPricing(ctx context.Context, productID string, lastBuyingRate decimal.Decimal, retailPrice decimal.Decimal) error

	CreateBatch(ctx context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error)
	GetBatch(ctx context.Context, batchID string) (*domain.InventoryBatch, error)
	// ListActiveBatches returns non-finished batches, oldest receipt first.
	ListActiveBatches(ctx context.Context, productID string) ([]domain.InventoryBatch, error)
	UpdateBatchQuantity(ctx context.Context, batchID string, quantity int, status domain.BatchStatus) error
	DeleteBatch(ctx context.Context, batchID string) error

	GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error)
	AdjustSupplierBalance(ctx context.Context, supplierID string, delta decimal.Decimal) (*domain.Supplier, error)

	GetWallet(ctx context.Context) (*domain.Wallet, error)
	AdjustWallet(ctx context.Context, pool domain.WalletPool, delta decimal.Decimal) (*domain.Wallet, error)

	CreateTransaction(ctx context.Context, entry domain.LedgerTransaction) (*domain.LedgerTransaction, error)
	GetTransactionByReference(ctx context.Context, referenceModel string, reference string) (*domain.LedgerTransaction, error)
	UpdateTransaction(ctx context.Context, entry domain.LedgerTransaction) (*domain.LedgerTransaction, error)
	DeleteTransactionByReference(ctx context.Context, referenceModel string, reference string) error

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error)
	UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	DeletePurchase(ctx context.Context, purchaseID string) error
}

type Repository interface {
	// WithinTx runs fn as one atomic unit. A non-nil error from fn aborts
	// the unit and leaves every store as it was before.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListBatches(ctx context.Context, productID string, includeFinished bool) ([]domain.InventoryBatch, error)
	// BatchStockByProduct sums non-finished batch quantities per product.
	BatchStockByProduct(ctx context.Context) (map[string]int, error)
	SetProductStock(ctx context.Context, productID string, stock int) error

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	GetWallet(ctx context.Context) (*domain.Wallet, error)

	GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, supplierID string, limit int) ([]domain.Purchase, error)
	ListTransactions(ctx context.Context, limit int) ([]domain.LedgerTransaction, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
