package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchActive   BatchStatus = "active"
	BatchPartial  BatchStatus = "partial"
	BatchFinished BatchStatus = "finished"
)

// BatchStatusFor derives a batch status from its remaining and received quantity.
func BatchStatusFor(quantity int, original int) BatchStatus {
	switch {
	case quantity <= 0:
		return BatchFinished
	case quantity < original:
		return BatchPartial
	default:
		return BatchActive
	}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentCompleted PaymentStatus = "completed"
)

func DerivePaymentStatus(amountPaid decimal.Decimal, balanceDue decimal.Decimal) PaymentStatus {
	if balanceDue.IsZero() {
		return PaymentCompleted
	}
	if amountPaid.IsPositive() {
		return PaymentPartial
	}
	return PaymentPending
}

type PaymentMethod string

const (
	MethodCash      PaymentMethod = "cash"
	MethodBank      PaymentMethod = "bank"
	MethodEasyPaisa PaymentMethod = "easyPaisa"
	MethodJazzCash  PaymentMethod = "jazzCash"
	MethodCard      PaymentMethod = "card"
	MethodCheque    PaymentMethod = "cheque"
)

// WalletPool names one balance on the wallet singleton.
type WalletPool string

const (
	PoolCash      WalletPool = "cash"
	PoolBank      WalletPool = "bank"
	PoolEasyPaisa WalletPool = "easyPaisa"
	PoolJazzCash  WalletPool = "jazzCash"
)

var WalletPools = []WalletPool{PoolCash, PoolBank, PoolEasyPaisa, PoolJazzCash}

// ParsePaymentMethod accepts the canonical names case-insensitively.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return MethodCash, true
	case "bank":
		return MethodBank, true
	case "easypaisa":
		return MethodEasyPaisa, true
	case "jazzcash":
		return MethodJazzCash, true
	case "card":
		return MethodCard, true
	case "cheque":
		return MethodCheque, true
	}
	return "", false
}

// PoolFor maps a payment method onto the wallet pool it draws from.
// Card and cheque payments are tracked on the purchase only.
func PoolFor(method PaymentMethod) (WalletPool, bool) {
	switch method {
	case MethodCash:
		return PoolCash, true
	case MethodBank:
		return PoolBank, true
	case MethodEasyPaisa:
		return PoolEasyPaisa, true
	case MethodJazzCash:
		return PoolJazzCash, true
	}
	return "", false
}

func (w Wallet) Balance(pool WalletPool) decimal.Decimal {
	switch pool {
	case PoolCash:
		return w.Cash
	case PoolBank:
		return w.Bank
	case PoolEasyPaisa:
		return w.EasyPaisa
	case PoolJazzCash:
		return w.JazzCash
	}
	return decimal.Zero
}

// Adjust returns a copy of the wallet with delta added to pool.
func (w Wallet) Adjust(pool WalletPool, delta decimal.Decimal) Wallet {
	switch pool {
	case PoolCash:
		w.Cash = w.Cash.Add(delta)
	case PoolBank:
		w.Bank = w.Bank.Add(delta)
	case PoolEasyPaisa:
		w.EasyPaisa = w.EasyPaisa.Add(delta)
	case PoolJazzCash:
		w.JazzCash = w.JazzCash.Add(delta)
	}
	return w
}

// RoundMoney rounds to the currency's display precision. Accumulation
// elsewhere stays at full precision.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
