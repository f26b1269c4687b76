package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret, "AUTH_SECRET must stay empty when unset")
}

func TestLoadFallsBackOnBadDurations(t *testing.T) {
	t.Setenv("OPERATION_TIMEOUT_SECONDS", "zero")
	t.Setenv("PURCHASE_LOCK_TTL_SECONDS", "-5")
	t.Setenv("RECONCILE_INTERVAL_MINUTES", "")

	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.OperationTimeout)
	assert.Equal(t, 30*time.Second, cfg.PurchaseLockTTL)
	assert.Equal(t, time.Duration(0), cfg.ReconcileInterval)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("OPERATION_TIMEOUT_SECONDS", "3")
	t.Setenv("RECONCILE_INTERVAL_MINUTES", "15")
	t.Setenv("REDIS_DB", "2")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Address())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 3*time.Second, cfg.OperationTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 2, cfg.RedisDB)
}
