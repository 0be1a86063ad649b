// Package observability provides Prometheus metrics and tracing setup.
package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "microstructure_lab"

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe on a nil *Metrics.
type Metrics struct {
	// Pipeline metrics
	PipelineRunsTotal  *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	RowsProcessed      prometheus.Counter
	AlertsEmitted      *prometheus.CounterVec
	OutcomeSamples     prometheus.Counter
	LastSuccessfulRun  prometheus.Gauge
	SweepRunsTotal     prometheus.Counter
	RollingCacheHits   prometheus.Counter
	RollingCacheMisses prometheus.Counter

	// Ingestion metrics
	TicksIngested *prometheus.CounterVec
	IngestErrors  *prometheus.CounterVec

	// API metrics
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"stage"}),
		RowsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows_processed_total",
			Help:      "Total number of tick rows processed",
		}),
		AlertsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "alerts_emitted_total",
			Help:      "Total number of alert rows by type",
		}, []string{"type"}),
		OutcomeSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "outcome_samples_total",
			Help:      "Total number of sampled forward returns",
		}),
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
		SweepRunsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "sweep_runs_total",
			Help:      "Total number of parameter sets evaluated by sweeps",
		}),
		RollingCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "rolling_hits_total",
			Help:      "Rolling table cache hits",
		}),
		RollingCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "rolling_misses_total",
			Help:      "Rolling table cache misses",
		}),

		TicksIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_ingested_total",
			Help:      "Total number of ticks ingested by source",
		}, []string{"source"}),
		IngestErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by source",
		}, []string{"source"}),

		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		APIRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of g.
// A nil g serves the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(status string, rows, spikes, gaps, samples int) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	m.RowsProcessed.Add(float64(rows))
	m.AlertsEmitted.WithLabelValues("spread_spike").Add(float64(spikes))
	m.AlertsEmitted.WithLabelValues("liquidity_gap").Add(float64(gaps))
	m.OutcomeSamples.Add(float64(samples))
	m.LastSuccessfulRun.SetToCurrentTime()
}

// RecordSweepRun increments the sweep run counter.
func (m *Metrics) RecordSweepRun() {
	if m == nil {
		return
	}
	m.SweepRunsTotal.Inc()
}

// RecordCache records a rolling table cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.RollingCacheHits.Inc()
	} else {
		m.RollingCacheMisses.Inc()
	}
}

// RecordTicksIngested adds n ingested ticks for source.
func (m *Metrics) RecordTicksIngested(source string, n int) {
	if m == nil {
		return
	}
	m.TicksIngested.WithLabelValues(source).Add(float64(n))
}

// RecordIngestError records an ingestion error for source.
func (m *Metrics) RecordIngestError(source string) {
	if m == nil {
		return
	}
	m.IngestErrors.WithLabelValues(source).Inc()
}

// RecordAPIRequest records one API request.
func (m *Metrics) RecordAPIRequest(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(route, code).Inc()
	m.APIRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SQLOperation returns the lowercased leading keyword of a statement,
// used as the operation label of database metrics.
func SQLOperation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

// Run status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
