package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiranaledger/backend/internal/store"
)

func TestObserveLabelsOutcomeByKind(t *testing.T) {
	m := New()
	started := time.Now()

	m.Observe("purchase_create", started, nil)
	m.Observe("purchase_create", started, nil)
	m.Observe("purchase_delete", started, fmt.Errorf("batch gone: %w", store.ErrInconsistentReversal))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("purchase_create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("purchase_delete", string(store.KindInconsistentReversal))))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("stock_consume", time.Now(), nil)
		m.SetStockDrift(3)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.SetStockDrift(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ledger_stock_drift_products 2")
}
