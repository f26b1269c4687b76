package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/lock"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/store/memory"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !money(want).Equal(got) {
		assert.Fail(t, "money mismatch: expected "+want+", got "+got.String(), msgAndArgs...)
	}
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

type fixture struct {
	repo     *memory.Store
	svc      *Service
	product  domain.Product
	supplier domain.Supplier
}

// newFixture builds a store with one product, one supplier owed nothing and
// 1000 in the cash pool.
func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	ctx := adminCtx()
	repo := memory.New()
	svc := New(repo, opts)

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{SKU: "sku-rice-5", Name: "Basmati Rice 5kg", Category: "grocery", RetailPrice: money("1900")})
	require.NoError(t, err)
	supplier, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Name: "Metro Wholesale"})
	require.NoError(t, err)
	_, err = svc.FundWallet(ctx, domain.WalletDepositRequest{PaymentMethod: domain.MethodCash, Amount: money("1000")})
	require.NoError(t, err)

	return fixture{repo: repo, svc: svc, product: product, supplier: supplier}
}

func (f fixture) addProduct(t *testing.T, sku string) domain.Product {
	t.Helper()
	product, err := f.svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{SKU: sku, Name: sku})
	require.NoError(t, err)
	return product
}

func purchaseRequest(supplierID, productID string, qty int, rate string, paid string, method domain.PaymentMethod) domain.PurchaseRequest {
	return domain.PurchaseRequest{
		SupplierID: supplierID,
		Items: []domain.PurchaseItemInput{{
			ProductID:    productID,
			Quantity:     qty,
			BuyingRate:   money(rate),
			SellingPrice: money("8"),
		}},
		PaymentMethod: method,
		AmountPaid:    money(paid),
	}
}

func (f fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	product, err := f.repo.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return product.Stock
}

func (f fixture) supplierBalance(t *testing.T, supplierID string) decimal.Decimal {
	t.Helper()
	supplier, err := f.repo.GetSupplier(context.Background(), supplierID)
	require.NoError(t, err)
	return supplier.Balance
}

func (f fixture) wallet(t *testing.T) domain.Wallet {
	t.Helper()
	wallet, err := f.repo.GetWallet(context.Background())
	require.NoError(t, err)
	return *wallet
}

func (f fixture) transactions(t *testing.T) []domain.LedgerTransaction {
	t.Helper()
	rows, err := f.repo.ListTransactions(context.Background(), 0)
	require.NoError(t, err)
	return rows
}

func (f fixture) activeBatches(t *testing.T, productID string) []domain.InventoryBatch {
	t.Helper()
	batches, err := f.repo.ListBatches(context.Background(), productID, false)
	require.NoError(t, err)
	return batches
}

func TestCreatePurchaseBooksEveryStore(t *testing.T) {
	f := newFixture(t, Options{})

	purchase, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "50", domain.MethodCash))
	require.NoError(t, err)

	assertMoney(t, "100", purchase.TotalAmount)
	assertMoney(t, "50", purchase.BalanceDue)
	assert.Equal(t, domain.PaymentPartial, purchase.PaymentStatus)
	assertMoney(t, "50", f.supplierBalance(t, f.supplier.ID))
	assertMoney(t, "950", f.wallet(t).Cash)
	assert.Equal(t, 20, f.stock(t, f.product.ID))

	batches := f.activeBatches(t, f.product.ID)
	require.Len(t, batches, 1)
	assert.Equal(t, 20, batches[0].Quantity)
	assert.Equal(t, purchase.ID, batches[0].PurchaseID)
	assert.Equal(t, batches[0].ID, purchase.Items[0].BatchNumber)

	rows := f.transactions(t)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.TxTypePurchase, rows[0].Type)
	assert.Equal(t, purchase.ID, rows[0].Reference)
	assertMoney(t, "50", rows[0].Amount)

	stored, err := f.svc.GetPurchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.ID, stored.ID)
}

func TestCreatePurchaseAddsTaxAndFreightToUnitCost(t *testing.T) {
	f := newFixture(t, Options{})
	req := purchaseRequest(f.supplier.ID, f.product.ID, 4, "10", "0", domain.MethodCard)
	req.Items[0].Tax = money("1.5")
	req.Items[0].Freight = money("0.25")

	purchase, err := f.svc.CreatePurchase(adminCtx(), req)
	require.NoError(t, err)

	assertMoney(t, "11.75", purchase.Items[0].UnitCostWithTax)
	assertMoney(t, "-3.75", purchase.Items[0].ProfitPerUnit)
	assertMoney(t, "47", purchase.TotalAmount)
	assert.Equal(t, domain.PaymentPending, purchase.PaymentStatus)
	assertMoney(t, "1000", f.wallet(t).Cash, "card purchases do not touch the wallet")

	batches := f.activeBatches(t, f.product.ID)
	require.Len(t, batches, 1)
	assertMoney(t, "11.75", batches[0].BuyingRate)
}

func TestDeletePurchaseRestoresPriorState(t *testing.T) {
	f := newFixture(t, Options{})
	rowsBefore := len(f.transactions(t))

	purchase, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "50", domain.MethodCash))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePurchase(adminCtx(), purchase.ID))

	assertMoney(t, "0", f.supplierBalance(t, f.supplier.ID))
	assertMoney(t, "1000", f.wallet(t).Cash)
	assert.Equal(t, 0, f.stock(t, f.product.ID))
	all, err := f.repo.ListBatches(context.Background(), f.product.ID, true)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Len(t, f.transactions(t), rowsBefore)

	_, err = f.svc.GetPurchase(context.Background(), purchase.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = f.svc.DeletePurchase(adminCtx(), purchase.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEditAmountPaidAppliesOnlyTheDelta(t *testing.T) {
	f := newFixture(t, Options{})
	purchase, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "50", domain.MethodCash))
	require.NoError(t, err)

	updated, err := f.svc.UpdatePurchase(adminCtx(), purchase.ID, purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "100", domain.MethodCash))
	require.NoError(t, err)

	assertMoney(t, "0", updated.BalanceDue)
	assert.Equal(t, domain.PaymentCompleted, updated.PaymentStatus)
	assertMoney(t, "900", f.wallet(t).Cash)
	assertMoney(t, "0", f.supplierBalance(t, f.supplier.ID))
	assert.Equal(t, 20, f.stock(t, f.product.ID))
	assert.Len(t, f.activeBatches(t, f.product.ID), 1)
	assert.Equal(t, purchase.CreatedAt, updated.CreatedAt)

	rows := f.transactions(t)
	require.Len(t, rows, 2, "the purchase row is rewritten, not appended")
	assertMoney(t, "100", rows[0].Amount)
}

func TestEditPaymentMethodTransfersBetweenPools(t *testing.T) {
	f := newFixture(t, Options{})
	purchase, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "50", domain.MethodCash))
	require.NoError(t, err)

	_, err = f.svc.UpdatePurchase(adminCtx(), purchase.ID, purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "50", domain.MethodBank))
	require.NoError(t, err)

	wallet := f.wallet(t)
	assertMoney(t, "1000", wallet.Cash)
	assertMoney(t, "-50", wallet.Bank)
	assertMoney(t, "50", f.supplierBalance(t, f.supplier.ID))
}

func TestEditEqualsDeleteThenCreate(t *testing.T) {
	edited := newFixture(t, Options{})
	fresh := newFixture(t, Options{})

	original, err := edited.svc.CreatePurchase(adminCtx(), purchaseRequest(edited.supplier.ID, edited.product.ID, 20, "5", "50", domain.MethodCash))
	require.NoError(t, err)
	_, err = edited.svc.UpdatePurchase(adminCtx(), original.ID, purchaseRequest(edited.supplier.ID, edited.product.ID, 12, "7", "30", domain.MethodBank))
	require.NoError(t, err)

	_, err = fresh.svc.CreatePurchase(adminCtx(), purchaseRequest(fresh.supplier.ID, fresh.product.ID, 12, "7", "30", domain.MethodBank))
	require.NoError(t, err)

	assert.True(t, fresh.supplierBalance(t, fresh.supplier.ID).Equal(edited.supplierBalance(t, edited.supplier.ID)))
	assert.True(t, fresh.wallet(t).Cash.Equal(edited.wallet(t).Cash))
	assert.True(t, fresh.wallet(t).Bank.Equal(edited.wallet(t).Bank))
	assert.Equal(t, fresh.stock(t, fresh.product.ID), edited.stock(t, edited.product.ID))
	assert.Len(t, edited.activeBatches(t, edited.product.ID), len(fresh.activeBatches(t, fresh.product.ID)))
	assert.Len(t, edited.transactions(t), len(fresh.transactions(t)))
}

func TestEditSupplierMovesWholePayable(t *testing.T) {
	f := newFixture(t, Options{})
	other, err := f.svc.CreateSupplier(adminCtx(), domain.SupplierCreateRequest{Name: "Al-Fatah Distributors", OpeningBalance: money("10")})
	require.NoError(t, err)

	purchase, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "50", domain.MethodCash))
	require.NoError(t, err)

	updated, err := f.svc.UpdatePurchase(adminCtx(), purchase.ID, purchaseRequest(other.ID, f.product.ID, 20, "5", "20", domain.MethodCash))
	require.NoError(t, err)

	assert.Equal(t, other.ID, updated.SupplierID)
	assertMoney(t, "0", f.supplierBalance(t, f.supplier.ID))
	assertMoney(t, "90", f.supplierBalance(t, other.ID))
	assertMoney(t, "980", f.wallet(t).Cash)

	list, err := f.svc.ListPurchases(context.Background(), other.ID, 0)
	require.NoError(t, err)
	require.Len(t, list.Purchases, 1)
	list, err = f.svc.ListPurchases(context.Background(), f.supplier.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, list.Purchases)
}

func TestEditKeepsFIFOPosition(t *testing.T) {
	f := newFixture(t, Options{})
	first, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 10, "5", "0", domain.MethodCash))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 10, "9", "0", domain.MethodCash))
	require.NoError(t, err)

	_, err = f.svc.UpdatePurchase(adminCtx(), first.ID, purchaseRequest(f.supplier.ID, f.product.ID, 10, "6", "0", domain.MethodCash))
	require.NoError(t, err)

	sale, err := f.svc.ConsumeStock(cashierCtx(), domain.SaleRequest{Lines: []domain.SaleLine{{ProductID: f.product.ID, Quantity: 10}}})
	require.NoError(t, err)
	assertMoney(t, "60", sale.TotalCost, "the edited lot is still the oldest")

	product, err := f.svc.GetProduct(context.Background(), f.product.ID)
	require.NoError(t, err)
	assertMoney(t, "9", product.LastBuyingRate)
}

func TestInvalidPurchaseLeavesStoresUntouched(t *testing.T) {
	f := newFixture(t, Options{})
	walletBefore := f.wallet(t)
	rowsBefore := len(f.transactions(t))

	cases := map[string]domain.PurchaseRequest{
		"overpaid":        purchaseRequest(f.supplier.ID, f.product.ID, 2, "5", "11", domain.MethodCash),
		"negative paid":   purchaseRequest(f.supplier.ID, f.product.ID, 2, "5", "-1", domain.MethodCash),
		"negative rate":   purchaseRequest(f.supplier.ID, f.product.ID, 2, "-5", "0", domain.MethodCash),
		"zero quantity":   purchaseRequest(f.supplier.ID, f.product.ID, 0, "5", "0", domain.MethodCash),
		"unknown method":  purchaseRequest(f.supplier.ID, f.product.ID, 2, "5", "0", "bitcoin"),
		"missing product": purchaseRequest(f.supplier.ID, "", 2, "5", "0", domain.MethodCash),
		"no items": {
			SupplierID:    f.supplier.ID,
			PaymentMethod: domain.MethodCash,
			AmountPaid:    decimal.Zero,
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreatePurchase(adminCtx(), req)
			assert.ErrorIs(t, err, store.ErrValidation)
		})
	}

	assert.Equal(t, walletBefore.Version, f.wallet(t).Version)
	assert.Len(t, f.transactions(t), rowsBefore)
	assert.Equal(t, 0, f.stock(t, f.product.ID))
	assertMoney(t, "0", f.supplierBalance(t, f.supplier.ID))
}

func TestPurchaseWithUnknownProductIsAtomic(t *testing.T) {
	f := newFixture(t, Options{})
	req := purchaseRequest(f.supplier.ID, f.product.ID, 5, "5", "25", domain.MethodCash)
	req.Items = append(req.Items, domain.PurchaseItemInput{ProductID: "prd-missing", Quantity: 1, BuyingRate: money("1")})

	_, err := f.svc.CreatePurchase(adminCtx(), req)
	require.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, 0, f.stock(t, f.product.ID))
	assert.Empty(t, f.activeBatches(t, f.product.ID))
	assertMoney(t, "1000", f.wallet(t).Cash)

	_, err = f.svc.CreatePurchase(adminCtx(), purchaseRequest("sup-missing", f.product.ID, 5, "5", "0", domain.MethodCash))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReversingSoldStockIsInconsistent(t *testing.T) {
	f := newFixture(t, Options{})
	purchase, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "50", domain.MethodCash))
	require.NoError(t, err)

	_, err = f.svc.ConsumeStock(cashierCtx(), domain.SaleRequest{Lines: []domain.SaleLine{{ProductID: f.product.ID, Quantity: 5}}})
	require.NoError(t, err)

	err = f.svc.DeletePurchase(adminCtx(), purchase.ID)
	require.ErrorIs(t, err, store.ErrInconsistentReversal)
	_, err = f.svc.UpdatePurchase(adminCtx(), purchase.ID, purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "100", domain.MethodCash))
	require.ErrorIs(t, err, store.ErrInconsistentReversal)

	assert.Equal(t, 15, f.stock(t, f.product.ID))
	assertMoney(t, "50", f.supplierBalance(t, f.supplier.ID))
	assertMoney(t, "950", f.wallet(t).Cash)
	stored, err := f.svc.GetPurchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assertMoney(t, "50", stored.AmountPaid)
}

func TestConsumeStockCostsSaleFIFO(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 10, "5", "0", domain.MethodCash))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 10, "8", "0", domain.MethodCash))
	require.NoError(t, err)

	sale, err := f.svc.ConsumeStock(cashierCtx(), domain.SaleRequest{
		Reference: "RCPT-1",
		Lines:     []domain.SaleLine{{ProductID: f.product.ID, Quantity: 15, UnitPrice: money("10")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "RCPT-1", sale.Reference)
	assertMoney(t, "90", sale.TotalCost)
	assertMoney(t, "150", sale.Revenue)
	assertMoney(t, "60", sale.GrossProfit)
	require.Len(t, sale.Lines, 1)
	require.Len(t, sale.Lines[0].Deductions, 2)
	assert.Equal(t, 5, f.stock(t, f.product.ID))

	batches := f.activeBatches(t, f.product.ID)
	require.Len(t, batches, 1)
	assert.Equal(t, domain.BatchPartial, batches[0].Status)
}

func TestConsumeStockIsAtomicAcrossLines(t *testing.T) {
	f := newFixture(t, Options{})
	second := f.addProduct(t, "SKU-OIL-5")
	req := purchaseRequest(f.supplier.ID, f.product.ID, 10, "5", "0", domain.MethodCash)
	req.Items = append(req.Items, domain.PurchaseItemInput{ProductID: second.ID, Quantity: 2, BuyingRate: money("3")})
	_, err := f.svc.CreatePurchase(adminCtx(), req)
	require.NoError(t, err)

	_, err = f.svc.ConsumeStock(cashierCtx(), domain.SaleRequest{Lines: []domain.SaleLine{
		{ProductID: f.product.ID, Quantity: 4},
		{ProductID: second.ID, Quantity: 3},
	}})
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, store.KindInsufficientStock, store.KindOf(err))

	assert.Equal(t, 10, f.stock(t, f.product.ID))
	assert.Equal(t, 2, f.stock(t, second.ID))
	batches := f.activeBatches(t, f.product.ID)
	require.Len(t, batches, 1)
	assert.Equal(t, 10, batches[0].Quantity)
}

func TestStockCountersMatchBatchesAfterMixedWork(t *testing.T) {
	f := newFixture(t, Options{})
	second := f.addProduct(t, "SKU-TEA-450")

	p1, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 12, "5", "10", domain.MethodCash))
	require.NoError(t, err)
	p2, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, second.ID, 7, "3", "0", domain.MethodCard))
	require.NoError(t, err)
	_, err = f.svc.UpdatePurchase(adminCtx(), p2.ID, purchaseRequest(f.supplier.ID, second.ID, 9, "3", "9", domain.MethodEasyPaisa))
	require.NoError(t, err)
	_, err = f.svc.ConsumeStock(cashierCtx(), domain.SaleRequest{Lines: []domain.SaleLine{{ProductID: second.ID, Quantity: 4}}})
	require.NoError(t, err)
	_, err = f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 3, "6", "0", domain.MethodCash))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeletePurchase(adminCtx(), p1.ID))

	report, err := f.svc.ReconcileStock(adminCtx(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CheckedProducts)
	assert.Empty(t, report.Drifts)
	assert.Equal(t, 3, f.stock(t, f.product.ID))
	assert.Equal(t, 5, f.stock(t, second.ID))
	assertMoney(t, "36", f.supplierBalance(t, f.supplier.ID))
	assertMoney(t, "-9", f.wallet(t).EasyPaisa)
}

func TestPaySupplierSettlesPayable(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 20, "5", "0", domain.MethodCash))
	require.NoError(t, err)

	_, err = f.svc.PaySupplier(adminCtx(), domain.SupplierPaymentRequest{SupplierID: f.supplier.ID, Amount: money("101"), PaymentMethod: domain.MethodCash})
	require.ErrorIs(t, err, store.ErrValidation)
	_, err = f.svc.PaySupplier(adminCtx(), domain.SupplierPaymentRequest{SupplierID: f.supplier.ID, Amount: decimal.Zero, PaymentMethod: domain.MethodCash})
	require.ErrorIs(t, err, store.ErrValidation)

	resp, err := f.svc.PaySupplier(adminCtx(), domain.SupplierPaymentRequest{SupplierID: f.supplier.ID, Amount: money("40"), PaymentMethod: domain.MethodCash, Notes: "weekly"})
	require.NoError(t, err)

	assertMoney(t, "60", resp.Supplier.Balance)
	assertMoney(t, "960", resp.Wallet.Cash)
	assert.Equal(t, domain.TxTypeSupplierPayment, resp.Transaction.Type)
	assert.Equal(t, domain.RefModelSupplier, resp.Transaction.ReferenceModel)
	assert.Contains(t, resp.Transaction.Description, "weekly")
	assertMoney(t, "60", f.supplierBalance(t, f.supplier.ID))
}

func TestFundWalletNeedsPooledMethod(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.FundWallet(adminCtx(), domain.WalletDepositRequest{PaymentMethod: domain.MethodCheque, Amount: money("10")})
	require.ErrorIs(t, err, store.ErrValidation)
	_, err = f.svc.FundWallet(adminCtx(), domain.WalletDepositRequest{PaymentMethod: domain.MethodBank, Amount: money("-10")})
	require.ErrorIs(t, err, store.ErrValidation)

	wallet, err := f.svc.FundWallet(adminCtx(), domain.WalletDepositRequest{PaymentMethod: "JazzCash", Amount: money("75.5")})
	require.NoError(t, err)
	assertMoney(t, "75.5", wallet.JazzCash)

	rows := f.transactions(t)
	require.NotEmpty(t, rows)
	assert.Equal(t, domain.TxTypeWalletDeposit, rows[0].Type)
	assert.Equal(t, string(domain.PoolJazzCash), rows[0].Reference)
}

func TestMutationsRequireRole(t *testing.T) {
	f := newFixture(t, Options{})
	req := purchaseRequest(f.supplier.ID, f.product.ID, 1, "5", "0", domain.MethodCash)

	_, err := f.svc.CreatePurchase(context.Background(), req)
	assert.ErrorIs(t, err, store.ErrForbidden)
	_, err = f.svc.CreatePurchase(cashierCtx(), req)
	assert.ErrorIs(t, err, store.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeletePurchase(cashierCtx(), "pur-x"), store.ErrForbidden)
	_, err = f.svc.FundWallet(cashierCtx(), domain.WalletDepositRequest{PaymentMethod: domain.MethodCash, Amount: money("1")})
	assert.ErrorIs(t, err, store.ErrForbidden)
	_, err = f.svc.ReconcileStock(cashierCtx(), true)
	assert.ErrorIs(t, err, store.ErrForbidden)
	_, err = f.svc.ConsumeStock(context.Background(), domain.SaleRequest{Lines: []domain.SaleLine{{ProductID: f.product.ID, Quantity: 1}}})
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestEditOfLockedPurchaseConflicts(t *testing.T) {
	locker := lock.NewLocalLocker()
	f := newFixture(t, Options{Locker: locker})
	purchase, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 5, "5", "0", domain.MethodCash))
	require.NoError(t, err)

	release, err := locker.Acquire(context.Background(), lock.PurchaseKey(purchase.ID), time.Minute)
	require.NoError(t, err)

	_, err = f.svc.UpdatePurchase(adminCtx(), purchase.ID, purchaseRequest(f.supplier.ID, f.product.ID, 6, "5", "0", domain.MethodCash))
	require.ErrorIs(t, err, store.ErrConflict)
	assert.True(t, store.Retryable(err))

	release()
	_, err = f.svc.UpdatePurchase(adminCtx(), purchase.ID, purchaseRequest(f.supplier.ID, f.product.ID, 6, "5", "0", domain.MethodCash))
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, f.product.ID))
}

func TestReconcileRepairsDriftedCounter(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.CreatePurchase(adminCtx(), purchaseRequest(f.supplier.ID, f.product.ID, 8, "5", "0", domain.MethodCash))
	require.NoError(t, err)
	require.NoError(t, f.repo.SetProductStock(context.Background(), f.product.ID, 11))

	report, err := f.svc.ReconcileStock(adminCtx(), true)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, 3, report.Drifts[0].Delta)
	assert.True(t, report.Drifts[0].Repaired)
	assert.Equal(t, 8, f.stock(t, f.product.ID))
}
