package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/inventory"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/xid"
)

// ConsumeStock costs an outgoing sale against FIFO batches. All lines commit
// together; if any line runs short nothing is deducted.
func (s *Service) ConsumeStock(ctx context.Context, req domain.SaleRequest) (domain.SaleCostResponse, error) {
	actor, err := requireRole(ctx, domain.RoleCashier, domain.RoleAdmin)
	if err != nil {
		return domain.SaleCostResponse{}, err
	}

	req.Reference = strings.TrimSpace(req.Reference)
	for i := range req.Lines {
		req.Lines[i].ProductID = strings.TrimSpace(req.Lines[i].ProductID)
	}
	if err := s.check(req); err != nil {
		return domain.SaleCostResponse{}, err
	}
	for i, line := range req.Lines {
		if line.UnitPrice.IsNegative() {
			return domain.SaleCostResponse{}, store.Invalid("lines[%d] unit price cannot be negative", i)
		}
	}
	if req.Reference == "" {
		req.Reference = xid.New("sale")
	}

	var lines []domain.SaleLineCost
	err = s.unit(ctx, "stock_consume", func(tx store.Tx) error {
		lines = make([]domain.SaleLineCost, 0, len(req.Lines))
		for _, line := range req.Lines {
			result, err := inventory.Consume(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			revenue := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			lines = append(lines, domain.SaleLineCost{
				ConsumeResult: result,
				Revenue:       revenue,
				GrossProfit:   revenue.Sub(result.TotalCost),
			})
		}
		return nil
	})
	if err != nil {
		return domain.SaleCostResponse{}, err
	}

	resp := domain.SaleCostResponse{
		Reference:   req.Reference,
		Lines:       make([]domain.SaleLineCost, 0, len(lines)),
		TotalCost:   decimal.Zero,
		Revenue:     decimal.Zero,
		GrossProfit: decimal.Zero,
	}
	for _, line := range lines {
		resp.TotalCost = resp.TotalCost.Add(line.TotalCost)
		resp.Revenue = resp.Revenue.Add(line.Revenue)
		resp.GrossProfit = resp.GrossProfit.Add(line.GrossProfit)

		line.TotalCost = domain.RoundMoney(line.TotalCost)
		line.Revenue = domain.RoundMoney(line.Revenue)
		line.GrossProfit = domain.RoundMoney(line.GrossProfit)
		resp.Lines = append(resp.Lines, line)
	}
	resp.TotalCost = domain.RoundMoney(resp.TotalCost)
	resp.Revenue = domain.RoundMoney(resp.Revenue)
	resp.GrossProfit = domain.RoundMoney(resp.GrossProfit)

	s.logger.Info("stock consumed",
		zap.String("reference", resp.Reference),
		zap.String("actor", actor.Username),
		zap.Int("lines", len(resp.Lines)),
		zap.String("cost", resp.TotalCost.String()),
	)
	return resp, nil
}
