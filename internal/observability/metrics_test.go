package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordRun(StatusSuccess, 100, 3, 2, 4)
	m.RecordRun(StatusError, 0, 0, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues(StatusError)))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.RowsProcessed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AlertsEmitted.WithLabelValues("spread_spike")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsEmitted.WithLabelValues("liquidity_gap")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OutcomeSamples))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("basic", time.Millisecond)
		m.RecordRun(StatusSuccess, 1, 1, 1, 1)
		m.RecordCache(true)
		m.RecordTicksIngested("csv", 10)
		m.RecordAPIRequest("/healthz", "200", time.Millisecond)
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Registering twice on fresh registries must not panic
	assert.NotPanics(t, func() {
		NewMetrics("", prometheus.NewRegistry())
		NewMetrics("", prometheus.NewRegistry())
	})
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.RecordTicksIngested("ws", 7)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_ingestion_ticks_ingested_total{source="ws"} 7`))
}

func TestSetupTracing(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupTracing(&buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "unit")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "unit"`)
}

func TestSQLOperation(t *testing.T) {
	assert.Equal(t, "insert", SQLOperation("\n\t\tINSERT INTO ticks (ts) VALUES (?)"))
	assert.Equal(t, "select", SQLOperation("SELECT 1"))
	assert.Equal(t, "unknown", SQLOperation("   "))
}

func TestMetrics_RecordDBQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordDBQuery("postgres", "select", 0, nil)
	m.RecordDBQuery("postgres", "select", 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "select")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DBQueryDuration))
}
