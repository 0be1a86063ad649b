// Package pipeline runs the analysis stages in order:
// basic features, rolling statistics, alert detection and outcome evaluation.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"microstructure-lab/internal/detection"
	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/features"
	"microstructure-lab/internal/idhash"
	"microstructure-lab/internal/metrics"
	"microstructure-lab/internal/observability"
)

// Stage names used for spans and duration metrics.
const (
	StageFeatures = "features"
	StageRolling  = "rolling"
	StageDetect   = "detect"
	StageOutcome  = "outcome"
)

// Result holds every table of one run plus its outcome.
type Result struct {
	Params     domain.Params
	ParamsHash string
	Spacing    features.SpacingReport

	Features *domain.FeatureTable
	Rolling  *domain.RollingTable
	Alerts   *domain.AlertTable
	Summary  *domain.OutcomeSummary

	// RollingReused is set when the rolling table came from a previous run.
	RollingReused bool
}

// Pipeline runs analyses. The zero value is not usable; use New.
type Pipeline struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	parallel bool
	xlsx     bool
	clock    func() time.Time
}

// New creates a pipeline that logs to slog.Default and traces with the global provider.
func New() *Pipeline {
	return &Pipeline{
		logger: slog.Default(),
		tracer: observability.Tracer(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	p.logger = l
	return p
}

// WithMetrics attaches Prometheus metrics. nil disables them.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithParallel computes the rolling columns concurrently.
func (p *Pipeline) WithParallel(parallel bool) *Pipeline {
	p.parallel = parallel
	return p
}

// WithXLSX makes Export also write alerts.xlsx.
func (p *Pipeline) WithXLSX(enabled bool) *Pipeline {
	p.xlsx = enabled
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// Run executes every stage over ticks with params.
func (p *Pipeline) Run(ctx context.Context, ticks *domain.TickTable, params domain.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(paramAttrs(params)...))
	defer span.End()

	var ft *domain.FeatureTable
	err := p.stage(ctx, StageFeatures, func(context.Context) error {
		var err error
		ft, err = features.ComputeBasicFeatures(ticks)
		return err
	})
	if err != nil {
		return nil, p.fail(span, err)
	}

	spacing := features.InspectSpacing(ticks)
	if spacing.Rows > 1 && !spacing.Regular() {
		p.logger.Warn("irregular tick spacing, windows are row counts",
			"rows", spacing.Rows,
			"median_interval", spacing.MedianInterval,
			"non_monotonic", spacing.NonMonotonic,
			"irregular_frac", spacing.IrregularFrac)
	}

	rt, err := p.Rolling(ctx, ft, params.Windows())
	if err != nil {
		return nil, p.fail(span, err)
	}

	res, err := p.Evaluate(ctx, rt, spacing, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res.Features = ft
	return res, nil
}

// Rerun evaluates new params against a previous result. Basic features are
// always reused; the rolling table is reused when the windows are unchanged.
func (p *Pipeline) Rerun(ctx context.Context, prev *Result, params domain.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if prev == nil || prev.Features == nil {
		return nil, &domain.SchemaError{Column: "spread", Reason: "previous result has no feature table"}
	}

	rt := prev.Rolling
	reused := rt != nil && rt.Windows == params.Windows()
	p.metrics.RecordCache(reused)
	if !reused {
		var err error
		rt, err = p.Rolling(ctx, prev.Features, params.Windows())
		if err != nil {
			return nil, err
		}
	}

	res, err := p.Evaluate(ctx, rt, prev.Spacing, params)
	if err != nil {
		return nil, err
	}
	res.Features = prev.Features
	res.RollingReused = reused
	return res, nil
}

// Rolling computes the rolling table for w.
func (p *Pipeline) Rolling(ctx context.Context, ft *domain.FeatureTable, w domain.Windows) (*domain.RollingTable, error) {
	var rt *domain.RollingTable
	err := p.stage(ctx, StageRolling, func(ctx context.Context) error {
		var err error
		if p.parallel {
			rt, err = features.ComputeRollingStatsParallel(ctx, ft, w)
		} else {
			rt, err = features.ComputeRollingStats(ft, w.Spread, w.Vol, w.Depth)
		}
		return err
	})
	return rt, err
}

// Evaluate runs detection and outcome evaluation over an existing rolling
// table. params.Windows() must match rt.Windows.
func (p *Pipeline) Evaluate(ctx context.Context, rt *domain.RollingTable, spacing features.SpacingReport, params domain.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, &domain.SchemaError{Column: "spread_z", Reason: "rolling table is nil"}
	}
	if rt.Windows != params.Windows() {
		return nil, &domain.InvalidParameterError{
			Name:   "windows",
			Value:  params.Windows(),
			Reason: "rolling table was computed with different windows",
		}
	}

	var at *domain.AlertTable
	err := p.stage(ctx, StageDetect, func(context.Context) error {
		var err error
		at, err = detection.DetectAlerts(rt, params.ZThreshold, params.DepthFactor)
		return err
	})
	if err != nil {
		p.metrics.RecordRun(observability.StatusError, 0, 0, 0, 0)
		return nil, err
	}

	var summary *domain.OutcomeSummary
	err = p.stage(ctx, StageOutcome, func(context.Context) error {
		var err error
		summary, err = metrics.EvaluateOutcomes(at, params.Horizon)
		return err
	})
	if err != nil {
		p.metrics.RecordRun(observability.StatusError, 0, 0, 0, 0)
		return nil, err
	}

	p.metrics.RecordRun(observability.StatusSuccess,
		summary.TotalRows, summary.SpreadSpikeCount, summary.LiquidityGapCount, summary.SampleCount)

	p.logger.Debug("run evaluated",
		"rows", summary.TotalRows,
		"alerts", summary.AlertCount,
		"samples", summary.SampleCount,
		"z_threshold", params.ZThreshold,
		"depth_factor", params.DepthFactor,
		"horizon", params.Horizon)

	return &Result{
		Params:     params,
		ParamsHash: idhash.ComputeParamsHash(params),
		Spacing:    spacing,
		Features:   rt.FeatureTable,
		Rolling:    rt,
		Alerts:     at,
		Summary:    summary,
	}, nil
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) fail(span trace.Span, err error) error {
	span.SetStatus(codes.Error, err.Error())
	p.metrics.RecordRun(observability.StatusError, 0, 0, 0, 0)
	return err
}

func paramAttrs(params domain.Params) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("spread_window", params.SpreadWindow),
		attribute.Int("vol_window", params.VolWindow),
		attribute.Int("depth_window", params.DepthWindow),
		attribute.Float64("z_threshold", params.ZThreshold),
		attribute.Float64("depth_factor", params.DepthFactor),
		attribute.Int("horizon", params.Horizon),
	}
}
