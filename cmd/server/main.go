package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kiranaledger/backend/internal/config"
	"kiranaledger/backend/internal/domain"
	"kiranaledger/backend/internal/httpapi"
	"kiranaledger/backend/internal/lock"
	"kiranaledger/backend/internal/logger"
	"kiranaledger/backend/internal/metrics"
	"kiranaledger/backend/internal/reconcile"
	"kiranaledger/backend/internal/service"
	"kiranaledger/backend/internal/store"
	"kiranaledger/backend/internal/store/memory"
	pgstore "kiranaledger/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	appLogger, err := logger.ForEnv(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		appLogger.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			appLogger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			appLogger.Fatal("postgres migration failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		appLogger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		appLogger.Info("repository: in-memory")
		if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
			appLogger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
		}
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		redisLocker := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisLocker.Ping(ctx); err != nil {
			appLogger.Warn("redis unavailable, purchase locks stay in-process", zap.Error(err))
		} else {
			redisLocker.OnReleaseError(func(err error) {
				appLogger.Warn("purchase lock release failed", zap.Error(err))
			})
			locker = redisLocker
			closers = append(closers, redisLocker.Close)
			appLogger.Info("purchase locks: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		appLogger.Info("purchase locks: in-process")
	}

	appMetrics := metrics.New()
	reconciler := reconcile.New(repo, appLogger, appMetrics)
	svc := service.New(repo, service.Options{
		Locker:           locker,
		Logger:           appLogger,
		Metrics:          appMetrics,
		Reconciler:       reconciler,
		OperationTimeout: cfg.OperationTimeout,
		PurchaseLockTTL:  cfg.PurchaseLockTTL,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if cfg.SeedAdminPassword != "" {
		if err := auth.EnsureAccount(ctx, "admin", cfg.SeedAdminPassword, domain.RoleAdmin); err != nil {
			appLogger.Fatal("seeding admin account failed", zap.Error(err))
		}
	}
	api := httpapi.New(svc, auth, appMetrics, appLogger, cfg.AllowedOrigin)

	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.ReconcileInterval > 0 {
		reconciler.Start(runCtx, cfg.ReconcileInterval)
		appLogger.Info("stock reconciliation scheduled", zap.Duration("every", cfg.ReconcileInterval))
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.OperationTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		appLogger.Info("ledger backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	stopBackground()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			appLogger.Warn("close error", zap.Error(err))
		}
	}

	appLogger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT_SECONDS must be positive")
	}
	return nil
}
