package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             string          `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Stock          int             `json:"stock"`
	LastBuyingRate decimal.Decimal `json:"last_buying_rate"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	SKU         string          `json:"sku" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required,max=200"`
	Category    string          `json:"category" validate:"max=80"`
	RetailPrice decimal.Decimal `json:"retail_price"`
}

type InventoryBatch struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	PurchaseID       string          `json:"purchase_id"`
	OriginalQuantity int             `json:"original_quantity"`
	Quantity         int             `json:"quantity"`
	BuyingRate       decimal.Decimal `json:"buying_rate"`
	SellingPrice     decimal.Decimal `json:"selling_price"`
	Status           BatchStatus     `json:"status"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
	ReceivedAt       time.Time       `json:"received_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

type BatchDeduction struct {
	BatchID    string          `json:"batch_id"`
	Quantity   int             `json:"quantity"`
	BuyingRate decimal.Decimal `json:"buying_rate"`
}

type ConsumeResult struct {
	ProductID  string           `json:"product_id"`
	Quantity   int              `json:"quantity"`
	TotalCost  decimal.Decimal  `json:"total_cost"`
	Deductions []BatchDeduction `json:"deductions"`
}

type Supplier struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name           string          `json:"name" validate:"required,max=180"`
	Phone          string          `json:"phone" validate:"max=40"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type SupplierPaymentRequest struct {
	SupplierID    string          `json:"supplier_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required"`
	Notes         string          `json:"notes" validate:"max=500"`
}

type SupplierPaymentResponse struct {
	Supplier    Supplier          `json:"supplier"`
	Wallet      Wallet            `json:"wallet"`
	Transaction LedgerTransaction `json:"transaction"`
}

// Wallet is the singleton set of cash pools.
type Wallet struct {
	Cash      decimal.Decimal `json:"cash"`
	Bank      decimal.Decimal `json:"bank"`
	EasyPaisa decimal.Decimal `json:"easy_paisa"`
	JazzCash  decimal.Decimal `json:"jazz_cash"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type WalletDepositRequest struct {
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         string          `json:"notes" validate:"max=500"`
}

type LedgerTransaction struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Reference      string          `json:"reference"`
	ReferenceModel string          `json:"reference_model"`
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type PurchaseItem struct {
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	BuyingRate      decimal.Decimal `json:"buying_rate"`
	Tax             decimal.Decimal `json:"tax"`
	Freight         decimal.Decimal `json:"freight"`
	UnitCostWithTax decimal.Decimal `json:"unit_cost_with_tax"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	ProfitPerUnit   decimal.Decimal `json:"profit_per_unit"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	BatchNumber     string          `json:"batch_number"`
}

type Purchase struct {
	ID            string          `json:"id"`
	SupplierID    string          `json:"supplier_id"`
	InvoiceNo     string          `json:"invoice_no"`
	Notes         string          `json:"notes"`
	Items         []PurchaseItem  `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	ReceivedAt    time.Time       `json:"received_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type PurchaseItemInput struct {
	ProductID    string          `json:"product_id" validate:"required"`
	Quantity     int             `json:"quantity" validate:"gt=0"`
	BuyingRate   decimal.Decimal `json:"buying_rate"`
	Tax          decimal.Decimal `json:"tax"`
	Freight      decimal.Decimal `json:"freight"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
}

// PurchaseRequest is the payload for both create and full edit.
type PurchaseRequest struct {
	SupplierID    string              `json:"supplier_id" validate:"required"`
	Items         []PurchaseItemInput `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod       `json:"payment_method" validate:"required"`
	AmountPaid    decimal.Decimal     `json:"amount_paid"`
	InvoiceNo     string              `json:"invoice_no" validate:"max=64"`
	Notes         string              `json:"notes" validate:"max=1000"`
}

type PurchaseResponse struct {
	Purchase Purchase `json:"purchase"`
}

type PurchaseListResponse struct {
	Purchases []Purchase `json:"purchases"`
}

type SaleLine struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleRequest struct {
	Reference string     `json:"reference" validate:"max=64"`
	Lines     []SaleLine `json:"lines" validate:"required,min=1,dive"`
}

type SaleLineCost struct {
	ConsumeResult
	Revenue     decimal.Decimal `json:"revenue"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
}

type SaleCostResponse struct {
	Reference   string          `json:"reference"`
	Lines       []SaleLineCost  `json:"lines"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Revenue     decimal.Decimal `json:"revenue"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
}

type StockDrift struct {
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	CounterStock int    `json:"counter_stock"`
	BatchStock   int    `json:"batch_stock"`
	Delta        int    `json:"delta"`
	Repaired     bool   `json:"repaired"`
}

type ReconcileResponse struct {
	CheckedProducts int          `json:"checked_products"`
	Drifts          []StockDrift `json:"drifts"`
	RanAt           string       `json:"ran_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	TxTypePurchase        = "purchase"
	TxTypeSupplierPayment = "supplier_payment"
	TxTypeWalletDeposit   = "wallet_deposit"
)

const (
	RefModelPurchase = "Purchase"
	RefModelSupplier = "Supplier"
	RefModelWallet   = "Wallet"
)
