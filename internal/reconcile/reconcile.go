// Package reconcile checks the materialized Product.Stock counters against
// the batches they summarize.
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/metrics"
	"kiranaledger/backend/internal/store"
)

type Reconciler struct {
	repo    store.Repository
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(repo store.Repository, logger *zap.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{repo: repo, logger: logger.Named("reconcile"), metrics: m}
}

// Run reports every product whose counter differs from its batch total.
func (r *Reconciler) Run(ctx context.Context) (domain.ReconcileResponse, error) {
	products, err := r.repo.ListProducts(ctx)
	if err != nil {
		return domain.ReconcileResponse{}, err
	}
	batchStock, err := r.repo.BatchStockByProduct(ctx)
	if err != nil {
		return domain.ReconcileResponse{}, err
	}

	report := domain.ReconcileResponse{
		CheckedProducts: len(products),
		Drifts:          []domain.StockDrift{},
		RanAt:           time.Now().UTC().Format(time.RFC3339),
	}
	for _, product := range products {
		fromBatches := batchStock[product.ID]
		if product.Stock == fromBatches {
			continue
		}
		report.Drifts = append(report.Drifts, domain.StockDrift{
			ProductID:    product.ID,
			SKU:          product.SKU,
			CounterStock: product.Stock,
			BatchStock:   fromBatches,
			Delta:        product.Stock - fromBatches,
		})
	}
	r.metrics.SetStockDrift(len(report.Drifts))
	return report, nil
}

// Repair runs a check and rewrites each drifted counter from its batches.
// Each product is recounted inside its own unit of work, so a sale landing
// between the check and the fix is not overwritten.
func (r *Reconciler) Repair(ctx context.Context) (domain.ReconcileResponse, error) {
	report, err := r.Run(ctx)
	if err != nil {
		return report, err
	}
	for i, drift := range report.Drifts {
		err := r.repo.WithinTx(ctx, func(tx store.Tx) error {
			product, err := tx.GetProduct(ctx, drift.ProductID)
			if err != nil {
				return err
			}
			batches, err := tx.ListActiveBatches(ctx, drift.ProductID)
			if err != nil {
				return err
			}
			total := 0
			for _, batch := range batches {
				total += batch.Quantity
			}
			if product.Stock == total {
				return nil
			}
			return tx.UpdateProductStock(ctx, drift.ProductID, total)
		})
		if err != nil {
			return report, err
		}
		report.Drifts[i].Repaired = true
		r.logger.Warn("stock counter repaired",
			zap.String("product_id", drift.ProductID),
			zap.Int("counter", drift.CounterStock),
			zap.Int("batches", drift.BatchStock),
		)
	}
	r.metrics.SetStockDrift(0)
	return report, nil
}

// Start checks on every tick until ctx ends. Drift is logged, not repaired.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := r.Run(ctx)
				if err != nil {
					r.logger.Error("stock reconciliation failed", zap.Error(err))
					continue
				}
				if len(report.Drifts) > 0 {
					r.logger.Warn("stock drift detected",
						zap.Int("products", len(report.Drifts)),
						zap.Int("checked", report.CheckedProducts),
					)
				}
			}
		}
	}()
}
