// Package inventory is the FIFO batch engine. Every operation runs against a
// store.Tx and keeps Product.Stock equal to the sum of the product's
// non-finished batch quantities.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/store"
)

// ReceiveInput describes one stock receipt, normally one purchase line.
type ReceiveInput struct {
	ProductID    string
	PurchaseID   string
	Quantity     int
	BuyingRate   decimal.Decimal
	SellingPrice decimal.Decimal
	ExpiryDate   *time.Time
	// ReceivedAt fixes the batch's FIFO position. Zero means now.
	ReceivedAt time.Time
}

// ListActiveBatches returns the product's non-finished batches, oldest first.
func ListActiveBatches(ctx context.Context, tx store.Tx, productID string) ([]domain.InventoryBatch, error) {
	if _, err := tx.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return tx.ListActiveBatches(ctx, productID)
}

// Consume drains quantity units from the product's batches in FIFO order and
// returns the accumulated cost. When the batches run out it returns the
// partial result together with ErrInsufficientStock. The deductions already
// made are not undone here; callers abort the enclosing unit of work.
func Consume(ctx context.Context, tx store.Tx, productID string, quantity int) (domain.ConsumeResult, error) {
	result := domain.ConsumeResult{ProductID: productID, TotalCost: decimal.Zero, Deductions: []domain.BatchDeduction{}}
	if quantity < 1 {
		return result, store.Invalid("consume quantity must be positive")
	}

	product, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return result, err
	}
	batches, err := tx.ListActiveBatches(ctx, productID)
	if err != nil {
		return result, err
	}

	remaining := quantity
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		if batch.Quantity < 1 {
			continue
		}
		taken := min(remaining, batch.Quantity)
		left := batch.Quantity - taken
		if err := tx.UpdateBatchQuantity(ctx, batch.ID, left, domain.BatchStatusFor(left, batch.OriginalQuantity)); err != nil {
			return result, err
		}
		result.Quantity += taken
		result.TotalCost = result.TotalCost.Add(batch.BuyingRate.Mul(decimal.NewFromInt(int64(taken))))
		result.Deductions = append(result.Deductions, domain.BatchDeduction{
			BatchID:    batch.ID,
			Quantity:   taken,
			BuyingRate: batch.BuyingRate,
		})
		remaining -= taken
	}

	if result.Quantity > 0 {
		if product.Stock < result.Quantity {
			return result, fmt.Errorf("product %s stock counter %d is below batch quantity %d: %w", productID, product.Stock, result.Quantity, store.ErrInsufficientStock)
		}
		if err := tx.UpdateProductStock(ctx, productID, product.Stock-result.Quantity); err != nil {
			return result, err
		}
	}
	if remaining > 0 {
		return result, fmt.Errorf("product %s: requested %d, available %d: %w", productID, quantity, result.Quantity, store.ErrInsufficientStock)
	}
	return result, nil
}

// Receive records a new active batch and adds its quantity to product stock.
// It is not deduplicated; callers invoke it once per purchase line.
func Receive(ctx context.Context, tx store.Tx, in ReceiveInput) (*domain.InventoryBatch, error) {
	if in.ProductID == "" || in.Quantity < 1 {
		return nil, store.Invalid("receipt requires a product and a positive quantity")
	}
	if in.BuyingRate.IsNegative() || in.SellingPrice.IsNegative() {
		return nil, store.Invalid("receipt rates cannot be negative")
	}

	product, err := tx.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	batch, err := tx.CreateBatch(ctx, domain.InventoryBatch{
		ProductID:        in.ProductID,
		PurchaseID:       in.PurchaseID,
		OriginalQuantity: in.Quantity,
		Quantity:         in.Quantity,
		BuyingRate:       in.BuyingRate,
		SellingPrice:     in.SellingPrice,
		Status:           domain.BatchActive,
		ExpiryDate:       in.ExpiryDate,
		ReceivedAt:       in.ReceivedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.UpdateProductStock(ctx, in.ProductID, product.Stock+in.Quantity); err != nil {
		return nil, err
	}
	if err := refreshPricing(ctx, tx, in.ProductID); err != nil {
		return nil, err
	}
	return batch, nil
}

// Remove hard-deletes a batch whatever its remaining quantity. Stock is left
// to the caller.
func Remove(ctx context.Context, tx store.Tx, batchID string) error {
	return tx.DeleteBatch(ctx, batchID)
}

// ReverseReceipt undoes one Receive: it subtracts quantity from product stock
// and deletes the batch. The batch must still hold its full received quantity
// and the stock counter must cover it; anything else means sales already
// consumed the lot and the reversal fails with ErrInconsistentReversal.
func ReverseReceipt(ctx context.Context, tx store.Tx, productID string, batchID string, quantity int) error {
	batch, err := tx.GetBatch(ctx, batchID)
	if err != nil {
		if store.KindOf(err) == store.KindNotFound {
			return store.Inconsistent("batch %s for product %s is missing", batchID, productID)
		}
		return err
	}
	if batch.ProductID != productID {
		return store.Inconsistent("batch %s belongs to product %s, not %s", batchID, batch.ProductID, productID)
	}
	if batch.Quantity != batch.OriginalQuantity || batch.OriginalQuantity != quantity {
		return store.Inconsistent("batch %s holds %d of %d received units, cannot reverse %d", batchID, batch.Quantity, batch.OriginalQuantity, quantity)
	}

	product, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product.Stock < quantity {
		return store.Inconsistent("product %s stock %d is below reversed quantity %d", productID, product.Stock, quantity)
	}

	if err := tx.UpdateProductStock(ctx, productID, product.Stock-quantity); err != nil {
		return err
	}
	if err := Remove(ctx, tx, batchID); err != nil {
		return err
	}
	return refreshPricing(ctx, tx, productID)
}

// refreshPricing mirrors the newest surviving active batch onto the product.
// With no active batch left the cached prices are kept.
func refreshPricing(ctx context.Context, tx store.Tx, productID string) error {
	batches, err := tx.ListActiveBatches(ctx, productID)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}
	newest := batches[len(batches)-1]
	return tx.UpdateProductPricing(ctx, productID, newest.BuyingRate, newest.SellingPrice)
}
