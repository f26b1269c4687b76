package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/store/memory"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestWalletMovesHitTheMethodsPool(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	cases := []struct {
		method domain.PaymentMethod
		pool   domain.WalletPool
	}{
		{domain.MethodCash, domain.PoolCash},
		{domain.MethodBank, domain.PoolBank},
		{domain.MethodEasyPaisa, domain.PoolEasyPaisa},
		{domain.MethodJazzCash, domain.PoolJazzCash},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			require.NoError(t, repo.WithinTx(ctx, func(tx store.Tx) error {
				before, err := tx.GetWallet(ctx)
				require.NoError(t, err)

				after, err := CreditWallet(ctx, tx, tc.method, money("100"))
				require.NoError(t, err)
				assert.True(t, before.Balance(tc.pool).Add(money("100")).Equal(after.Balance(tc.pool)))

				after, err = DebitWallet(ctx, tx, tc.method, money("40"))
				require.NoError(t, err)
				assert.True(t, before.Balance(tc.pool).Add(money("60")).Equal(after.Balance(tc.pool)))
				return nil
			}))
		})
	}
}

func TestUnpooledMethodsLeaveWalletUntouched(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	require.NoError(t, repo.WithinTx(ctx, func(tx store.Tx) error {
		for _, method := range []domain.PaymentMethod{domain.MethodCard, domain.MethodCheque} {
			wallet, err := DebitWallet(ctx, tx, method, money("500"))
			require.NoError(t, err)
			assert.Nil(t, wallet)
		}
		wallet, err := DebitWallet(ctx, tx, domain.MethodCash, decimal.Zero)
		require.NoError(t, err)
		assert.Nil(t, wallet, "zero amounts are skipped")
		return nil
	}))

	wallet, err := repo.GetWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Version)
}

func TestWalletMayGoNegative(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	require.NoError(t, repo.WithinTx(ctx, func(tx store.Tx) error {
		_, err := DebitWallet(ctx, tx, domain.MethodBank, money("250"))
		return err
	}))

	wallet, err := repo.GetWallet(ctx)
	require.NoError(t, err)
	assert.True(t, money("-250").Equal(wallet.Bank))
}

func TestSupplierBalanceHasNoFloor(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	supplier, err := repo.CreateSupplier(ctx, domain.Supplier{Name: "Metro", Balance: money("30")})
	require.NoError(t, err)

	require.NoError(t, repo.WithinTx(ctx, func(tx store.Tx) error {
		updated, err := Credit(ctx, tx, supplier.ID, money("20"))
		require.NoError(t, err)
		assert.True(t, money("50").Equal(updated.Balance))

		updated, err = Debit(ctx, tx, supplier.ID, money("80"))
		require.NoError(t, err)
		assert.True(t, money("-30").Equal(updated.Balance))
		return nil
	}))

	err = repo.WithinTx(ctx, func(tx store.Tx) error {
		_, err := Credit(ctx, tx, "sup-missing", money("1"))
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPurchaseRowLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	purchase := domain.Purchase{
		ID:            "pur-1",
		InvoiceNo:     "INV-7",
		TotalAmount:   money("200"),
		AmountPaid:    money("150"),
		BalanceDue:    money("50"),
		PaymentMethod: domain.MethodCash,
	}

	require.NoError(t, repo.WithinTx(ctx, func(tx store.Tx) error {
		entry, err := RecordPurchase(ctx, tx, purchase, "Metro")
		require.NoError(t, err)
		assert.Equal(t, domain.TxTypePurchase, entry.Type)
		assert.Equal(t, domain.RefModelPurchase, entry.ReferenceModel)
		assert.Equal(t, "cash", entry.Source)
		assert.True(t, money("150").Equal(entry.Amount))
		assert.Contains(t, entry.Description, "INV-7")
		assert.Contains(t, entry.Description, "due 50.00")

		_, err = RecordPurchase(ctx, tx, purchase, "Metro")
		assert.Error(t, err, "a purchase has exactly one row")
		return nil
	}))

	purchase.AmountPaid = money("200")
	purchase.BalanceDue = decimal.Zero
	purchase.PaymentMethod = domain.MethodBank
	require.NoError(t, repo.WithinTx(ctx, func(tx store.Tx) error {
		entry, err := RewritePurchase(ctx, tx, purchase, "Metro")
		require.NoError(t, err)
		assert.Equal(t, "bank", entry.Source)
		assert.True(t, money("200").Equal(entry.Amount))
		return nil
	}))

	rows, err := repo.ListTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.WithinTx(ctx, func(tx store.Tx) error {
		return ForgetPurchase(ctx, tx, purchase.ID)
	}))
	rows, err = repo.ListTransactions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
