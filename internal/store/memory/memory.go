package memory

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/xid"
)

// Store keeps every ledger table in process memory. A single write lock is
// held for the whole of a WithinTx unit, so units are serializable.
type Store struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	products      map[string]domain.Product
	productBySKU  map[string]string
	batches       map[string]domain.InventoryBatch
	batchSeq      map[string]int64
	nextSeq       int64
	suppliers     map[string]domain.Supplier
	wallet        domain.Wallet
	transactions  map[string]domain.LedgerTransaction
	txByReference map[string]string
	txOrder       []string
	purchases     map[string]domain.Purchase
	users         map[string]domain.UserAccount
}

func New() *Store {
	return &Store{st: newState()}
}

func newState() *state {
	now := time.Now().UTC()
	return &state{
		products:      make(map[string]domain.Product),
		productBySKU:  make(map[string]string),
		batches:       make(map[string]domain.InventoryBatch),
		batchSeq:      make(map[string]int64),
		suppliers:     make(map[string]domain.Supplier),
		wallet:        domain.Wallet{UpdatedAt: now},
		transactions:  make(map[string]domain.LedgerTransaction),
		txByReference: make(map[string]string),
		txOrder:       make([]string, 0, 128),
		purchases:     make(map[string]domain.Purchase),
		users:         make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD when set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hashing seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a small grocery catalog, two suppliers and
// the dev user accounts. Seeded products carry no stock, so the stock
// counters agree with the (empty) batch table.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range []struct {
		sku, name, category string
		retail              int64
	}{
		{"SKU-ATTA-10", "Chakki Atta 10kg", "grocery", 1450},
		{"SKU-OIL-5", "Cooking Oil 5L", "grocery", 2650},
		{"SKU-TEA-450", "Black Tea 450g", "beverage", 980},
		{"SKU-RICE-5", "Basmati Rice 5kg", "grocery", 1900},
		{"SKU-MILK-1", "UHT Milk 1L", "dairy", 280},
		{"SKU-SUGAR-1", "Sugar 1kg", "grocery", 165},
	} {
		id := xid.New("prd")
		s.st.products[id] = domain.Product{
			ID:             id,
			SKU:            p.sku,
			Name:           p.name,
			Category:       p.category,
			LastBuyingRate: decimal.Zero,
			RetailPrice:    decimal.NewFromInt(p.retail),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		s.st.productBySKU[p.sku] = id
	}
	for _, name := range []string{"Metro Wholesale", "Al-Fatah Distributors"} {
		id := xid.New("sup")
		s.st.suppliers[id] = domain.Supplier{ID: id, Name: name, Balance: decimal.Zero, CreatedAt: now}
	}
	s.st.users = seedUsers()
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&memTx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Name = strings.TrimSpace(product.Name)
	if product.SKU == "" || product.Name == "" || product.Stock < 0 {
		return nil, store.Invalid("product sku and name are required")
	}
	if _, exists := s.st.productBySKU[product.SKU]; exists {
		return nil, store.Invalid("sku %s already exists", product.SKU)
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.st.products[product.ID] = product
	s.st.productBySKU[product.SKU] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getProduct(productID)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := slices.Collect(maps.Values(s.st.products))
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) ListBatches(_ context.Context, productID string, includeFinished bool) ([]domain.InventoryBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.st.products[productID]; !ok {
		return nil, store.NotFound("product %s", productID)
	}
	return s.st.batchesFor(productID, includeFinished), nil
}

func (s *Store) BatchStockByProduct(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int, len(s.st.products))
	for _, batch := range s.st.batches {
		if batch.Status == domain.BatchFinished {
			continue
		}
		result[batch.ProductID] += batch.Quantity
	}
	return result, nil
}

func (s *Store) SetProductStock(_ context.Context, productID string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateProductStock(productID, stock)
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.Invalid("supplier name is required")
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	s.st.suppliers[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplier(_ context.Context, supplierID string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getSupplier(supplierID)
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := slices.Collect(maps.Values(s.st.suppliers))
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.Name, b.Name)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return suppliers, nil
}

func (s *Store) GetWallet(_ context.Context) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wallet := s.st.wallet
	return &wallet, nil
}

func (s *Store) GetPurchase(_ context.Context, purchaseID string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getPurchase(purchaseID)
}

func (s *Store) ListPurchases(_ context.Context, supplierID string, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Purchase, 0, len(s.st.purchases))
	for _, p := range s.st.purchases {
		if supplierID != "" && p.SupplierID != supplierID {
			continue
		}
		result = append(result, clonePurchase(p))
	}
	slices.SortFunc(result, func(a, b domain.Purchase) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListTransactions(_ context.Context, limit int) ([]domain.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LedgerTransaction, 0, len(s.st.txOrder))
	for i := len(s.st.txOrder) - 1; i >= 0; i-- {
		entry, ok := s.st.transactions[s.st.txOrder[i]]
		if !ok {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username and password are required")
	}
	if _, exists := s.st.users[username]; exists {
		return store.Invalid("user %s already exists", username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.st.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := slices.Collect(maps.Values(s.st.users))
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func referenceKey(referenceModel string, reference string) string {
	return referenceModel + "::" + reference
}
