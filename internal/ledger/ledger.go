// Package ledger holds the supplier payable and wallet pool bookkeeping plus
// the purchase audit rows. All functions run inside a store.Tx.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/store"
)

// Credit raises what the store owes the supplier.
func Credit(ctx context.Context, tx store.Tx, supplierID string, amount decimal.Decimal) (*domain.Supplier, error) {
	return tx.AdjustSupplierBalance(ctx, supplierID, amount)
}

// Debit lowers the supplier balance. There is no floor; a negative balance is
// an advance held by the supplier.
func Debit(ctx context.Context, tx store.Tx, supplierID string, amount decimal.Decimal) (*domain.Supplier, error) {
	return tx.AdjustSupplierBalance(ctx, supplierID, amount.Neg())
}

// DebitWallet takes amount out of the pool behind method. Methods without a
// pool (card, cheque) leave the wallet untouched and return nil.
func DebitWallet(ctx context.Context, tx store.Tx, method domain.PaymentMethod, amount decimal.Decimal) (*domain.Wallet, error) {
	pool, ok := domain.PoolFor(method)
	if !ok || amount.IsZero() {
		return nil, nil
	}
	return tx.AdjustWallet(ctx, pool, amount.Neg())
}

// CreditWallet returns amount to the pool behind method.
func CreditWallet(ctx context.Context, tx store.Tx, method domain.PaymentMethod, amount decimal.Decimal) (*domain.Wallet, error) {
	pool, ok := domain.PoolFor(method)
	if !ok || amount.IsZero() {
		return nil, nil
	}
	return tx.AdjustWallet(ctx, pool, amount)
}

// PurchaseEntry builds the audit row describing a purchase.
func PurchaseEntry(purchase domain.Purchase, supplierName string) domain.LedgerTransaction {
	return domain.LedgerTransaction{
		Type:           domain.TxTypePurchase,
		Reference:      purchase.ID,
		ReferenceModel: domain.RefModelPurchase,
		Amount:         purchase.AmountPaid,
		Source:         string(purchase.PaymentMethod),
		Description:    describePurchase(purchase, supplierName),
	}
}

// RecordPurchase appends the audit row for a new purchase.
func RecordPurchase(ctx context.Context, tx store.Tx, purchase domain.Purchase, supplierName string) (*domain.LedgerTransaction, error) {
	return tx.CreateTransaction(ctx, PurchaseEntry(purchase, supplierName))
}

// RewritePurchase updates the purchase's audit row in place.
func RewritePurchase(ctx context.Context, tx store.Tx, purchase domain.Purchase, supplierName string) (*domain.LedgerTransaction, error) {
	existing, err := tx.GetTransactionByReference(ctx, domain.RefModelPurchase, purchase.ID)
	if err != nil {
		return nil, err
	}
	entry := PurchaseEntry(purchase, supplierName)
	entry.ID = existing.ID
	return tx.UpdateTransaction(ctx, entry)
}

// ForgetPurchase drops the purchase's audit row.
func ForgetPurchase(ctx context.Context, tx store.Tx, purchaseID string) error {
	return tx.DeleteTransactionByReference(ctx, domain.RefModelPurchase, purchaseID)
}

func describePurchase(purchase domain.Purchase, supplierName string) string {
	invoice := purchase.InvoiceNo
	if invoice == "" {
		invoice = purchase.ID
	}
	return fmt.Sprintf("Purchase %s from %s: total %s, paid %s via %s, due %s",
		invoice,
		supplierName,
		domain.RoundMoney(purchase.TotalAmount).StringFixed(2),
		domain.RoundMoney(purchase.AmountPaid).StringFixed(2),
		purchase.PaymentMethod,
		domain.RoundMoney(purchase.BalanceDue).StringFixed(2),
	)
}
