package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/ledger"
	"kiranaledger/backend/internal/store"
)

// PaySupplier settles part of a supplier's payable outside any purchase. The
// amount may not exceed what is currently owed.
func (s *Service) PaySupplier(ctx context.Context, req domain.SupplierPaymentRequest) (domain.SupplierPaymentResponse, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.SupplierPaymentResponse{}, err
	}

	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.check(req); err != nil {
		return domain.SupplierPaymentResponse{}, err
	}
	method, err := parseMethod(req.PaymentMethod)
	if err != nil {
		return domain.SupplierPaymentResponse{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.SupplierPaymentResponse{}, store.Invalid("payment amount must be positive")
	}

	var resp domain.SupplierPaymentResponse
	err = s.unit(ctx, "supplier_payment", func(tx store.Tx) error {
		supplier, err := tx.GetSupplier(ctx, req.SupplierID)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(supplier.Balance) {
			return store.Invalid("payment %s exceeds outstanding balance %s", req.Amount, supplier.Balance)
		}

		updated, err := ledger.Debit(ctx, tx, supplier.ID, req.Amount)
		if err != nil {
			return err
		}
		if _, err := ledger.DebitWallet(ctx, tx, method, req.Amount); err != nil {
			return err
		}

		description := fmt.Sprintf("Payment to %s via %s", supplier.Name, method)
		if req.Notes != "" {
			description += ": " + req.Notes
		}
		entry, err := tx.CreateTransaction(ctx, domain.LedgerTransaction{
			Type:           domain.TxTypeSupplierPayment,
			Reference:      supplier.ID,
			ReferenceModel: domain.RefModelSupplier,
			Amount:         req.Amount,
			Source:         string(method),
			Description:    description,
		})
		if err != nil {
			return err
		}
		wallet, err := tx.GetWallet(ctx)
		if err != nil {
			return err
		}

		resp = domain.SupplierPaymentResponse{Supplier: *updated, Wallet: *wallet, Transaction: *entry}
		return nil
	})
	if err != nil {
		return domain.SupplierPaymentResponse{}, err
	}

	s.logger.Info("supplier paid",
		zap.String("supplier_id", resp.Supplier.ID),
		zap.String("actor", actor.Username),
		zap.String("amount", req.Amount.String()),
		zap.String("method", string(method)),
	)
	return resp, nil
}

// FundWallet adds money to a pool, for opening floats and top-ups.
func (s *Service) FundWallet(ctx context.Context, req domain.WalletDepositRequest) (domain.Wallet, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Wallet{}, err
	}

	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.check(req); err != nil {
		return domain.Wallet{}, err
	}
	method, err := parseMethod(req.PaymentMethod)
	if err != nil {
		return domain.Wallet{}, err
	}
	pool, ok := domain.PoolFor(method)
	if !ok {
		return domain.Wallet{}, store.Invalid("%s has no wallet pool", method)
	}
	if !req.Amount.IsPositive() {
		return domain.Wallet{}, store.Invalid("deposit amount must be positive")
	}

	var wallet domain.Wallet
	err = s.unit(ctx, "wallet_deposit", func(tx store.Tx) error {
		funded, err := ledger.CreditWallet(ctx, tx, method, req.Amount)
		if err != nil {
			return err
		}
		description := fmt.Sprintf("Deposit to %s", pool)
		if req.Notes != "" {
			description += ": " + req.Notes
		}
		if _, err := tx.CreateTransaction(ctx, domain.LedgerTransaction{
			Type:           domain.TxTypeWalletDeposit,
			Reference:      string(pool),
			ReferenceModel: domain.RefModelWallet,
			Amount:         req.Amount,
			Source:         string(method),
			Description:    description,
		}); err != nil {
			return err
		}
		wallet = *funded
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}

	s.logger.Info("wallet funded",
		zap.String("pool", string(pool)),
		zap.String("actor", actor.Username),
		zap.String("amount", req.Amount.String()),
	)
	return wallet, nil
}
