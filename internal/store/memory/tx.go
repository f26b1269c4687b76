package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/xid"
)

// memTx operates on the live state while the store's write lock is held.
type memTx struct {
	st *state
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	return t.st.getProduct(productID)
}

func (t *memTx) UpdateProductStock(_ context.Context, productID string, stock int) error {
	return t.st.updateProductStock(productID, stock)
}

func (t *memTx) UpdateProductPricing(_ context.Context, productID string, lastBuyingRate decimal.Decimal, retailPrice decimal.Decimal) error {
	product, ok := t.st.products[productID]
	if !ok {
		return store.NotFound("product %s", productID)
	}
	product.LastBuyingRate = lastBuyingRate
	product.RetailPrice = retailPrice
	product.UpdatedAt = time.Now().UTC()
	t.st.products[productID] = product
	return nil
}

func (t *memTx) CreateBatch(_ context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error) {
	if batch.ProductID == "" || batch.OriginalQuantity < 1 || batch.Quantity < 0 {
		return nil, store.Invalid("batch requires a product and a positive quantity")
	}
	if _, ok := t.st.products[batch.ProductID]; !ok {
		return nil, store.NotFound("product %s", batch.ProductID)
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

	t.st.nextSeq++
	t.st.batchSeq[batch.ID] = t.st.nextSeq
	t.st.batches[batch.ID] = cloneBatch(batch)
	created := cloneBatch(batch)
	return &created, nil
}

func (t *memTx) GetBatch(_ context.Context, batchID string) (*domain.InventoryBatch, error) {
	batch, ok := t.st.batches[batchID]
	if !ok {
		return nil, store.NotFound("batch %s", batchID)
	}
	found := cloneBatch(batch)
	return &found, nil
}

func (t *memTx) ListActiveBatches(_ context.Context, productID string) ([]domain.InventoryBatch, error) {
	return t.st.batchesFor(productID, false), nil
}

func (t *memTx) UpdateBatchQuantity(_ context.Context, batchID string, quantity int, status domain.BatchStatus) error {
	batch, ok := t.st.batches[batchID]
	if !ok {
		return store.NotFound("batch %s", batchID)
	}
	if quantity < 0 {
		return store.Invalid("batch %s quantity cannot go below zero", batchID)
	}
	batch.Quantity = quantity
	batch.Status = status
	t.st.batches[batchID] = batch
	return nil
}

func (t *memTx) DeleteBatch(_ context.Context, batchID string) error {
	if _, ok := t.st.batches[batchID]; !ok {
		return store.NotFound("batch %s", batchID)
	}
	delete(t.st.batches, batchID)
	delete(t.st.batchSeq, batchID)
	return nil
}

func (t *memTx) GetSupplier(_ context.Context, supplierID string) (*domain.Supplier, error) {
	return t.st.getSupplier(supplierID)
}

func (t *memTx) AdjustSupplierBalance(_ context.Context, supplierID string, delta decimal.Decimal) (*domain.Supplier, error) {
	supplier, ok := t.st.suppliers[supplierID]
	if !ok {
		return nil, store.NotFound("supplier %s", supplierID)
	}
	supplier.Balance = supplier.Balance.Add(delta)
	t.st.suppliers[supplierID] = supplier
	updated := supplier
	return &updated, nil
}

func (t *memTx) GetWallet(_ context.Context) (*domain.Wallet, error) {
	wallet := t.st.wallet
	return &wallet, nil
}

func (t *memTx) AdjustWallet(_ context.Context, pool domain.WalletPool, delta decimal.Decimal) (*domain.Wallet, error) {
	if !slices.Contains(domain.WalletPools, pool) {
		return nil, store.Invalid("unknown wallet pool %q", pool)
	}
	wallet := t.st.wallet.Adjust(pool, delta)
	wallet.Version++
	wallet.UpdatedAt = time.Now().UTC()
	t.st.wallet = wallet
	return &wallet, nil
}

func (t *memTx) CreateTransaction(_ context.Context, entry domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	if entry.Type == "" || entry.Reference == "" || entry.ReferenceModel == "" {
		return nil, store.Invalid("transaction requires type and reference")
	}
	if entry.ID == "" {
		entry.ID = xid.New("txn")
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = entry.CreatedAt

	// Purchase rows are unique per reference; payment rows are appended.
	if entry.ReferenceModel == domain.RefModelPurchase {
		key := referenceKey(entry.ReferenceModel, entry.Reference)
		if _, exists := t.st.txByReference[key]; exists {
			return nil, store.Invalid("transaction for %s already exists", entry.Reference)
		}
		t.st.txByReference[key] = entry.ID
	}
	t.st.transactions[entry.ID] = entry
	t.st.txOrder = append(t.st.txOrder, entry.ID)
	created := entry
	return &created, nil
}

func (t *memTx) GetTransactionByReference(_ context.Context, referenceModel string, reference string) (*domain.LedgerTransaction, error) {
	id, ok := t.st.txByReference[referenceKey(referenceModel, reference)]
	if !ok {
		return nil, store.NotFound("transaction for %s %s", referenceModel, reference)
	}
	entry := t.st.transactions[id]
	return &entry, nil
}

func (t *memTx) UpdateTransaction(_ context.Context, entry domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	existing, ok := t.st.transactions[entry.ID]
	if !ok {
		return nil, store.NotFound("transaction %s", entry.ID)
	}
	entry.CreatedAt = existing.CreatedAt
	entry.Reference = existing.Reference
	entry.ReferenceModel = existing.ReferenceModel
	entry.UpdatedAt = time.Now().UTC()
	t.st.transactions[entry.ID] = entry
	updated := entry
	return &updated, nil
}

func (t *memTx) DeleteTransactionByReference(_ context.Context, referenceModel string, reference string) error {
	key := referenceKey(referenceModel, reference)
	id, ok := t.st.txByReference[key]
	if !ok {
		return store.NotFound("transaction for %s %s", referenceModel, reference)
	}
	delete(t.st.txByReference, key)
	delete(t.st.transactions, id)
	t.st.txOrder = slices.DeleteFunc(t.st.txOrder, func(v string) bool { return v == id })
	return nil
}

func (t *memTx) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.Invalid("purchase requires a supplier and items")
	}
	if _, ok := t.st.suppliers[purchase.SupplierID]; !ok {
		return nil, store.NotFound("supplier %s", purchase.SupplierID)
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if _, exists := t.st.purchases[purchase.ID]; exists {
		return nil, store.Invalid("purchase %s already exists", purchase.ID)
	}
	now := time.Now().UTC()
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = now
	}
	purchase.UpdatedAt = now

	t.st.purchases[purchase.ID] = clonePurchase(purchase)
	created := clonePurchase(purchase)
	return &created, nil
}

func (t *memTx) GetPurchase(_ context.Context, purchaseID string) (*domain.Purchase, error) {
	return t.st.getPurchase(purchaseID)
}

func (t *memTx) UpdatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	existing, ok := t.st.purchases[purchase.ID]
	if !ok {
		return nil, store.NotFound("purchase %s", purchase.ID)
	}
	if _, ok := t.st.suppliers[purchase.SupplierID]; !ok {
		return nil, store.NotFound("supplier %s", purchase.SupplierID)
	}
	purchase.CreatedAt = existing.CreatedAt
	purchase.UpdatedAt = time.Now().UTC()
	t.st.purchases[purchase.ID] = clonePurchase(purchase)
	updated := clonePurchase(purchase)
	return &updated, nil
}

func (t *memTx) DeletePurchase(_ context.Context, purchaseID string) error {
	if _, ok := t.st.purchases[purchaseID]; !ok {
		return store.NotFound("purchase %s", purchaseID)
	}
	delete(t.st.purchases, purchaseID)
	return nil
}

func (st *state) getProduct(productID string) (*domain.Product, error) {
	product, ok := st.products[productID]
	if !ok {
		return nil, store.NotFound("product %s", productID)
	}
	return &product, nil
}

func (st *state) updateProductStock(productID string, stock int) error {
	product, ok := st.products[productID]
	if !ok {
		return store.NotFound("product %s", productID)
	}
	if stock < 0 {
		return store.Invalid("product %s stock cannot go below zero", productID)
	}
	product.Stock = stock
	product.UpdatedAt = time.Now().UTC()
	st.products[productID] = product
	return nil
}

func (st *state) getSupplier(supplierID string) (*domain.Supplier, error) {
	supplier, ok := st.suppliers[supplierID]
	if !ok {
		return nil, store.NotFound("supplier %s", supplierID)
	}
	return &supplier, nil
}

func (st *state) getPurchase(purchaseID string) (*domain.Purchase, error) {
	purchase, ok := st.purchases[purchaseID]
	if !ok {
		return nil, store.NotFound("purchase %s", purchaseID)
	}
	found := clonePurchase(purchase)
	return &found, nil
}

func (st *state) batchesFor(productID string, includeFinished bool) []domain.InventoryBatch {
	result := make([]domain.InventoryBatch, 0, 8)
	for _, batch := range st.batches {
		if batch.ProductID != productID {
			continue
		}
		if !includeFinished && batch.Status == domain.BatchFinished {
			continue
		}
		result = append(result, cloneBatch(batch))
	}
	slices.SortFunc(result, func(a, b domain.InventoryBatch) int {
		if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
			return c
		}
		if st.batchSeq[a.ID] < st.batchSeq[b.ID] {
			return -1
		}
		if st.batchSeq[a.ID] > st.batchSeq[b.ID] {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result
}

func (st *state) clone() *state {
	dup := &state{
		products:      maps.Clone(st.products),
		productBySKU:  maps.Clone(st.productBySKU),
		batches:       make(map[string]domain.InventoryBatch, len(st.batches)),
		batchSeq:      maps.Clone(st.batchSeq),
		nextSeq:       st.nextSeq,
		suppliers:     maps.Clone(st.suppliers),
		wallet:        st.wallet,
		transactions:  maps.Clone(st.transactions),
		txByReference: maps.Clone(st.txByReference),
		txOrder:       slices.Clone(st.txOrder),
		purchases:     make(map[string]domain.Purchase, len(st.purchases)),
		users:         maps.Clone(st.users),
	}
	for id, batch := range st.batches {
		dup.batches[id] = cloneBatch(batch)
	}
	for id, purchase := range st.purchases {
		dup.purchases[id] = clonePurchase(purchase)
	}
	return dup
}

func cloneBatch(src domain.InventoryBatch) domain.InventoryBatch {
	dup := src
	if src.ExpiryDate != nil {
		expiry := src.ExpiryDate.UTC()
		dup.ExpiryDate = &expiry
	}
	return dup
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	dup := src
	items := make([]domain.PurchaseItem, len(src.Items))
	for i, item := range src.Items {
		if item.ExpiryDate != nil {
			expiry := item.ExpiryDate.UTC()
			item.ExpiryDate = &expiry
		}
		items[i] = item
	}
	dup.Items = items
	return dup
}
