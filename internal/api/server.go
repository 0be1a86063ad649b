// Package api serves on-demand analyses of stored tick datasets over HTTP.
// Rolling tables are cached per (dataset, windows), so changing only
// thresholds or the horizon re-evaluates without recomputing statistics.
package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/metrics"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/pipeline"
	"microstructure-lab/internal/storage"
)

// DefaultRecentAlerts is the alert page size when a request sets none.
const DefaultRecentAlerts = 50

// Options for creating Server.
type Options struct {
	// Required
	TickStore storage.TickStore

	// Optional persistence; both must be set to persist runs.
	RunStore        storage.RunStore
	AlertEventStore storage.AlertEventStore

	Pipeline       *pipeline.Pipeline
	Defaults       domain.Params // zero value means domain.DefaultParams
	CacheEntries   int
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
	RequestTimeout time.Duration

	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer // served on /metrics; nil serves the default gatherer
	NewID    func() string
	Clock    func() time.Time
}

// Server is the HTTP analysis service.
type Server struct {
	ticks      storage.TickStore
	runs       storage.RunStore
	alerts     storage.AlertEventStore
	aggregator *metrics.Aggregator

	pipeline *pipeline.Pipeline
	defaults domain.Params
	cache    *rollingCache
	validate *validator.Validate

	rps     float64
	burst   int
	timeout time.Duration

	logger   *slog.Logger
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	newID    func() string
	clock    func() time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		ticks:    opts.TickStore,
		runs:     opts.RunStore,
		alerts:   opts.AlertEventStore,
		pipeline: opts.Pipeline,
		defaults: opts.Defaults,
		cache:    newRollingCache(opts.CacheEntries),
		validate: newValidator(),
		rps:      opts.RateLimitRPS,
		burst:    opts.RateLimitBurst,
		timeout:  opts.RequestTimeout,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		newID:    opts.NewID,
		clock:    opts.Clock,
	}
	if s.pipeline == nil {
		s.pipeline = pipeline.New()
	}
	if s.defaults == (domain.Params{}) {
		s.defaults = domain.DefaultParams()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	if s.runs != nil && s.alerts != nil {
		s.aggregator = metrics.NewAggregator(s.runs, s.alerts)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(s.metrics))
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", observability.Handler(s.gatherer))

	r.Route("/v1", func(r chi.Router) {
		if s.rps > 0 {
			r.Use(newRateLimiter(s.rps, s.burst, s.logger).Handler)
		}
		if s.timeout > 0 {
			r.Use(middleware.Timeout(s.timeout))
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/datasets", s.handleListDatasets)
		r.Route("/datasets/{datasetID}", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
			r.Delete("/cache", s.handleInvalidate)
			r.Get("/runs", s.handleListRuns)
		})
	})
	return r
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
