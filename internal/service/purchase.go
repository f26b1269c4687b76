package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/inventory"
	"kiranaledger/backend/internal/ledger"
	"kiranaledger/backend/internal/lock"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/xid"
)

// purchaseDraft is a validated request with every derived amount computed.
type purchaseDraft struct {
	supplierID  string
	method      domain.PaymentMethod
	items       []domain.PurchaseItem
	totalAmount decimal.Decimal
	amountPaid  decimal.Decimal
	balanceDue  decimal.Decimal
	invoiceNo   string
	notes       string
}

// draftPurchase validates req and derives line costs and totals. It touches no
// store, so a rejected request never starts a unit of work.
func (s *Service) draftPurchase(req domain.PurchaseRequest) (purchaseDraft, error) {
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.InvoiceNo = strings.TrimSpace(req.InvoiceNo)
	req.Notes = strings.TrimSpace(req.Notes)
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
	}
	if err := s.check(req); err != nil {
		return purchaseDraft{}, err
	}

	method, err := parseMethod(req.PaymentMethod)
	if err != nil {
		return purchaseDraft{}, err
	}

	draft := purchaseDraft{
		supplierID:  req.SupplierID,
		method:      method,
		items:       make([]domain.PurchaseItem, 0, len(req.Items)),
		totalAmount: decimal.Zero,
		amountPaid:  req.AmountPaid,
		invoiceNo:   req.InvoiceNo,
		notes:       req.Notes,
	}
	for i, in := range req.Items {
		if in.BuyingRate.IsNegative() || in.Tax.IsNegative() || in.Freight.IsNegative() || in.SellingPrice.IsNegative() {
			return purchaseDraft{}, store.Invalid("items[%d] amounts cannot be negative", i)
		}
		unitCost := in.BuyingRate.Add(in.Tax).Add(in.Freight)
		draft.items = append(draft.items, domain.PurchaseItem{
			ProductID:       in.ProductID,
			Quantity:        in.Quantity,
			BuyingRate:      in.BuyingRate,
			Tax:             in.Tax,
			Freight:         in.Freight,
			UnitCostWithTax: unitCost,
			SellingPrice:    in.SellingPrice,
			ProfitPerUnit:   in.SellingPrice.Sub(unitCost),
			ExpiryDate:      in.ExpiryDate,
		})
		draft.totalAmount = draft.totalAmount.Add(unitCost.Mul(decimal.NewFromInt(int64(in.Quantity))))
	}

	if draft.amountPaid.IsNegative() {
		return purchaseDraft{}, store.Invalid("amount paid cannot be negative")
	}
	if draft.amountPaid.GreaterThan(draft.totalAmount) {
		return purchaseDraft{}, store.Invalid("amount paid %s exceeds purchase total %s", draft.amountPaid, draft.totalAmount)
	}
	draft.balanceDue = draft.totalAmount.Sub(draft.amountPaid)
	return draft, nil
}

// receiveItems books one batch per line and records its id on the line.
func receiveItems(ctx context.Context, tx store.Tx, purchaseID string, receivedAt time.Time, items []domain.PurchaseItem) ([]domain.PurchaseItem, error) {
	booked := make([]domain.PurchaseItem, len(items))
	for i, item := range items {
		batch, err := inventory.Receive(ctx, tx, inventory.ReceiveInput{
			ProductID:    item.ProductID,
			PurchaseID:   purchaseID,
			Quantity:     item.Quantity,
			BuyingRate:   item.UnitCostWithTax,
			SellingPrice: item.SellingPrice,
			ExpiryDate:   item.ExpiryDate,
			ReceivedAt:   receivedAt,
		})
		if err != nil {
			return nil, err
		}
		item.BatchNumber = batch.ID
		booked[i] = item
	}
	return booked, nil
}

// reverseItems removes the batches booked for a purchase and takes their
// quantity back out of stock.
func reverseItems(ctx context.Context, tx store.Tx, items []domain.PurchaseItem) error {
	for _, item := range items {
		if err := inventory.ReverseReceipt(ctx, tx, item.ProductID, item.BatchNumber, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// CreatePurchase books the purchase's batches and stock, then the supplier
// payable, the wallet debit, the audit row and finally the purchase itself.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (domain.Purchase, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Purchase{}, err
	}
	draft, err := s.draftPurchase(req)
	if err != nil {
		return domain.Purchase{}, err
	}

	purchaseID := xid.New("pur")
	var created domain.Purchase
	err = s.unit(ctx, "purchase_create", func(tx store.Tx) error {
		supplier, err := tx.GetSupplier(ctx, draft.supplierID)
		if err != nil {
			return err
		}

		receivedAt := time.Now().UTC()
		items, err := receiveItems(ctx, tx, purchaseID, receivedAt, draft.items)
		if err != nil {
			return err
		}

		purchase := domain.Purchase{
			ID:            purchaseID,
			SupplierID:    supplier.ID,
			InvoiceNo:     draft.invoiceNo,
			Notes:         draft.notes,
			Items:         items,
			TotalAmount:   draft.totalAmount,
			AmountPaid:    draft.amountPaid,
			BalanceDue:    draft.balanceDue,
			PaymentMethod: draft.method,
			PaymentStatus: domain.DerivePaymentStatus(draft.amountPaid, draft.balanceDue),
			ReceivedAt:    receivedAt,
		}

		if _, err := ledger.Credit(ctx, tx, supplier.ID, purchase.BalanceDue); err != nil {
			return err
		}
		if _, err := ledger.DebitWallet(ctx, tx, purchase.PaymentMethod, purchase.AmountPaid); err != nil {
			return err
		}
		if _, err := ledger.RecordPurchase(ctx, tx, purchase, supplier.Name); err != nil {
			return err
		}
		saved, err := tx.CreatePurchase(ctx, purchase)
		if err != nil {
			return err
		}
		created = *saved
		return nil
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.logger.Info("purchase created",
		zap.String("purchase_id", created.ID),
		zap.String("supplier_id", created.SupplierID),
		zap.String("actor", actor.Username),
		zap.String("total", created.TotalAmount.String()),
		zap.String("paid", created.AmountPaid.String()),
	)
	return created, nil
}

// UpdatePurchase replaces a purchase with the state described by req. Old
// batches are always reversed and fresh ones booked at the purchase's
// original receipt time. Supplier and wallet move by the difference when
// supplier and method are unchanged and by a full reversal otherwise.
func (s *Service) UpdatePurchase(ctx context.Context, purchaseID string, req domain.PurchaseRequest) (domain.Purchase, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Purchase{}, err
	}
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return domain.Purchase{}, store.Invalid("purchase id is required")
	}
	draft, err := s.draftPurchase(req)
	if err != nil {
		return domain.Purchase{}, err
	}

	release, err := s.locker.Acquire(ctx, lock.PurchaseKey(purchaseID), s.lockTTL)
	if err != nil {
		return domain.Purchase{}, err
	}
	defer release()

	var updated domain.Purchase
	err = s.unit(ctx, "purchase_update", func(tx store.Tx) error {
		old, err := tx.GetPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		supplier, err := tx.GetSupplier(ctx, draft.supplierID)
		if err != nil {
			return err
		}

		if err := reverseItems(ctx, tx, old.Items); err != nil {
			return err
		}
		items, err := receiveItems(ctx, tx, old.ID, old.ReceivedAt, draft.items)
		if err != nil {
			return err
		}

		next := *old
		next.SupplierID = supplier.ID
		next.InvoiceNo = draft.invoiceNo
		next.Notes = draft.notes
		next.Items = items
		next.TotalAmount = draft.totalAmount
		next.AmountPaid = draft.amountPaid
		next.BalanceDue = draft.balanceDue
		next.PaymentMethod = draft.method
		next.PaymentStatus = domain.DerivePaymentStatus(draft.amountPaid, draft.balanceDue)

		if old.SupplierID == next.SupplierID {
			if _, err := ledger.Credit(ctx, tx, next.SupplierID, next.BalanceDue.Sub(old.BalanceDue)); err != nil {
				return err
			}
		} else {
			if _, err := ledger.Debit(ctx, tx, old.SupplierID, old.BalanceDue); err != nil {
				return err
			}
			if _, err := ledger.Credit(ctx, tx, next.SupplierID, next.BalanceDue); err != nil {
				return err
			}
		}

		if old.PaymentMethod == next.PaymentMethod {
			if _, err := ledger.DebitWallet(ctx, tx, next.PaymentMethod, next.AmountPaid.Sub(old.AmountPaid)); err != nil {
				return err
			}
		} else {
			if _, err := ledger.CreditWallet(ctx, tx, old.PaymentMethod, old.AmountPaid); err != nil {
				return err
			}
			if _, err := ledger.DebitWallet(ctx, tx, next.PaymentMethod, next.AmountPaid); err != nil {
				return err
			}
		}

		if _, err := ledger.RewritePurchase(ctx, tx, next, supplier.Name); err != nil {
			return err
		}
		saved, err := tx.UpdatePurchase(ctx, next)
		if err != nil {
			return err
		}
		updated = *saved
		return nil
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.logger.Info("purchase updated",
		zap.String("purchase_id", updated.ID),
		zap.String("supplier_id", updated.SupplierID),
		zap.String("actor", actor.Username),
		zap.String("total", updated.TotalAmount.String()),
		zap.String("paid", updated.AmountPaid.String()),
	)
	return updated, nil
}

// DeletePurchase is the exact inverse of CreatePurchase. Stock and batches
// are reversed before the purchase document goes.
func (s *Service) DeletePurchase(ctx context.Context, purchaseID string) error {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return store.Invalid("purchase id is required")
	}

	release, err := s.locker.Acquire(ctx, lock.PurchaseKey(purchaseID), s.lockTTL)
	if err != nil {
		return err
	}
	defer release()

	var supplierID string
	err = s.unit(ctx, "purchase_delete", func(tx store.Tx) error {
		old, err := tx.GetPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		supplierID = old.SupplierID

		if err := reverseItems(ctx, tx, old.Items); err != nil {
			return err
		}
		if _, err := ledger.Debit(ctx, tx, old.SupplierID, old.BalanceDue); err != nil {
			return err
		}
		if _, err := ledger.CreditWallet(ctx, tx, old.PaymentMethod, old.AmountPaid); err != nil {
			return err
		}
		if err := ledger.ForgetPurchase(ctx, tx, old.ID); err != nil {
			return err
		}
		return tx.DeletePurchase(ctx, old.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("purchase deleted",
		zap.String("purchase_id", purchaseID),
		zap.String("supplier_id", supplierID),
		zap.String("actor", actor.Username),
	)
	return nil
}

func (s *Service) GetPurchase(ctx context.Context, purchaseID string) (domain.Purchase, error) {
	purchase, err := s.repo.GetPurchase(ctx, strings.TrimSpace(purchaseID))
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context, supplierID string, limit int) (domain.PurchaseListResponse, error) {
	if limit < 1 {
		limit = 50
	}
	purchases, err := s.repo.ListPurchases(ctx, strings.TrimSpace(supplierID), limit)
	if err != nil {
		return domain.PurchaseListResponse{}, err
	}
	return domain.PurchaseListResponse{Purchases: purchases}, nil
}
