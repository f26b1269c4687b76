package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/lock"
	"kiranaledger/backend/internal/metrics"
	"kiranaledger/backend/internal/reconcile"
	"kiranaledger/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Locker     lock.Locker
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Reconciler *reconcile.Reconciler
	// OperationTimeout bounds every unit of work. Zero means 10s.
	OperationTimeout time.Duration
	// PurchaseLockTTL is how long an edit/delete may hold the purchase lock.
	PurchaseLockTTL time.Duration
}

type Service struct {
	repo       store.Repository
	locker     lock.Locker
	logger     *zap.Logger
	metrics    *metrics.Metrics
	reconciler *reconcile.Reconciler
	validate   *validator.Validate
	opTimeout  time.Duration
	lockTTL    time.Duration
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 10 * time.Second
	}
	if opts.PurchaseLockTTL <= 0 {
		opts.PurchaseLockTTL = 30 * time.Second
	}
	if opts.Reconciler == nil {
		opts.Reconciler = reconcile.New(repo, opts.Logger, opts.Metrics)
	}

	return &Service{
		repo:       repo,
		locker:     opts.Locker,
		logger:     opts.Logger.Named("service"),
		metrics:    opts.Metrics,
		reconciler: opts.Reconciler,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		opTimeout:  opts.OperationTimeout,
		lockTTL:    opts.PurchaseLockTTL,
	}
}

// unit runs fn as one bounded, atomic unit of work and records its outcome.
func (s *Service) unit(ctx context.Context, operation string, fn func(tx store.Tx) error) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(operation, started, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err = s.repo.WithinTx(ctx, fn)
	if err != nil {
		level := zap.WarnLevel
		if store.KindOf(err) == store.KindServer {
			level = zap.ErrorLevel
		}
		s.logger.Check(level, "unit of work aborted").Write(
			zap.String("operation", operation),
			zap.String("kind", string(store.KindOf(err))),
			zap.Error(err),
		)
	}
	return err
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("no authenticated actor: %w", store.ErrForbidden)
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("role %s may not do this: %w", actor.Role, store.ErrForbidden)
}

// check runs the struct tag rules and reports the first failure as a
// validation error.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return store.Invalid("%s failed on %s", fe.Namespace(), fe.Tag())
	}
	return store.Invalid("%v", err)
}

func parseMethod(raw domain.PaymentMethod) (domain.PaymentMethod, error) {
	method, ok := domain.ParsePaymentMethod(string(raw))
	if !ok {
		return "", store.Invalid("unknown payment method %q", raw)
	}
	return method, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Product{}, err
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}
	if req.RetailPrice.IsNegative() {
		return domain.Product{}, store.Invalid("retail price cannot be negative")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:            req.SKU,
		Name:           req.Name,
		Category:       req.Category,
		LastBuyingRate: decimal.Zero,
		RetailPrice:    req.RetailPrice,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("product created", zap.String("product_id", created.ID), zap.String("sku", created.SKU))
	return *created, nil
}

// ListBatches returns the product's batches in FIFO order.
func (s *Service) ListBatches(ctx context.Context, productID string, includeFinished bool) ([]domain.InventoryBatch, error) {
	return s.repo.ListBatches(ctx, strings.TrimSpace(productID), includeFinished)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, supplierID string) (domain.Supplier, error) {
	supplier, err := s.repo.GetSupplier(ctx, strings.TrimSpace(supplierID))
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.check(req); err != nil {
		return domain.Supplier{}, err
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:    req.Name,
		Phone:   req.Phone,
		Balance: req.OpeningBalance,
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logger.Info("supplier created", zap.String("supplier_id", created.ID), zap.String("opening_balance", created.Balance.String()))
	return *created, nil
}

func (s *Service) GetWallet(ctx context.Context) (domain.Wallet, error) {
	wallet, err := s.repo.GetWallet(ctx)
	if err != nil {
		return domain.Wallet{}, err
	}
	return *wallet, nil
}

func (s *Service) ListTransactions(ctx context.Context, limit int) ([]domain.LedgerTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListTransactions(ctx, limit)
}

// ReconcileStock compares every stock counter with its batches and, when
// repair is set, rewrites drifted counters.
func (s *Service) ReconcileStock(ctx context.Context, repair bool) (domain.ReconcileResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.ReconcileResponse{}, err
	}
	started := time.Now()
	var (
		report domain.ReconcileResponse
		err    error
	)
	if repair {
		report, err = s.reconciler.Repair(ctx)
	} else {
		report, err = s.reconciler.Run(ctx)
	}
	s.metrics.Observe("stock_reconcile", started, err)
	return report, err
}
