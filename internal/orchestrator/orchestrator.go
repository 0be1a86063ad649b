// Package orchestrator runs parameter sweeps over one tick table.
// It coordinates: pipeline → persistence (runs, alert events, feature rows)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/metrics"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/pipeline"
	"microstructure-lab/internal/reporting"
	"microstructure-lab/internal/storage"
)

// ErrEmptyGrid is returned when the grid yields no parameter set.
var ErrEmptyGrid = errors.New("parameter grid is empty")

// Orchestrator coordinates sweep execution.
// Flow: for each parameter set → pipeline run (rolling reuse) → persist
type Orchestrator struct {
	pipeline *pipeline.Pipeline

	// Stores (optional, nil skips persistence)
	runStore        storage.RunStore
	alertStore      storage.AlertEventStore
	featureRowStore storage.FeatureRowStore

	datasetID string
	grid      Grid

	logger  *slog.Logger
	metrics *observability.Metrics
	newID   func() string
	clock   func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Pipeline  *pipeline.Pipeline
	DatasetID string
	Grid      Grid

	// Optional stores
	RunStore        storage.RunStore
	AlertEventStore storage.AlertEventStore
	FeatureRowStore storage.FeatureRowStore // rows are stored once per distinct window set

	// Options
	Logger  *slog.Logger
	Metrics *observability.Metrics
	NewID   func() string    // defaults to random UUIDs
	Clock   func() time.Time // defaults to time.Now().UTC()
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		pipeline:        opts.Pipeline,
		runStore:        opts.RunStore,
		alertStore:      opts.AlertEventStore,
		featureRowStore: opts.FeatureRowStore,
		datasetID:       opts.DatasetID,
		grid:            opts.Grid,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		newID:           opts.NewID,
		clock:           opts.Clock,
	}
	if o.pipeline == nil {
		o.pipeline = pipeline.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.clock == nil {
		o.clock = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// SweepRun is one completed parameter set.
type SweepRun struct {
	RunID  string
	Result *pipeline.Result
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunsCreated     int
	RollingComputed int
	RollingReused   int
	Runs            []SweepRun
	Errors          []string
}

// SweepRows returns one reporting row per completed run, sorted by params.
func (r *RunResult) SweepRows() []reporting.SweepRow {
	summaries := make([]metrics.RunSummary, len(r.Runs))
	for i, run := range r.Runs {
		summaries[i] = metrics.RunSummary{
			Run:     &domain.RunRecord{RunID: run.RunID, Params: run.Result.Params},
			Summary: run.Result.Summary,
		}
	}
	metrics.SortRunSummaries(summaries)

	rows := make([]reporting.SweepRow, len(summaries))
	for i, s := range summaries {
		rows[i] = reporting.SweepRow{RunID: s.Run.RunID, Params: s.Run.Params, Summary: s.Summary}
	}
	return rows
}

// Run executes every parameter set of the grid over ticks.
// Invalid parameter sets and persistence failures are collected in
// RunResult.Errors; a schema error or cancellation aborts the sweep.
func (o *Orchestrator) Run(ctx context.Context, ticks *domain.TickTable) (*RunResult, error) {
	sets := o.grid.Params()
	if len(sets) == 0 {
		return nil, ErrEmptyGrid
	}

	result := &RunResult{}
	o.logger.Info("sweep started", "dataset", o.datasetID, "param_sets", len(sets))

	var prev *pipeline.Result
	for _, params := range sets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := o.runOne(ctx, ticks, prev, params)
		if err != nil {
			if errors.Is(err, domain.ErrSchema) {
				return nil, fmt.Errorf("sweep aborted: %w", err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("params %s: %v", describe(params), err))
			continue
		}
		prev = res
		if res.RollingReused {
			result.RollingReused++
		} else {
			result.RollingComputed++
		}

		runID := o.newID()
		if err := o.persist(ctx, runID, res); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("persist %s: %v", runID, err))
			continue
		}

		result.Runs = append(result.Runs, SweepRun{RunID: runID, Result: res})
		result.RunsCreated++
		o.metrics.RecordSweepRun()

		o.logger.Debug("sweep run completed",
			"run_id", runID,
			"params", describe(params),
			"alerts", res.Summary.AlertCount,
			"samples", res.Summary.SampleCount,
			"rolling_reused", res.RollingReused)
	}

	o.logger.Info("sweep completed",
		"dataset", o.datasetID,
		"runs", result.RunsCreated,
		"rolling_computed", result.RollingComputed,
		"rolling_reused", result.RollingReused,
		"errors", len(result.Errors))

	return result, nil
}

// runOne reuses prev's tables where possible.
func (o *Orchestrator) runOne(ctx context.Context, ticks *domain.TickTable, prev *pipeline.Result, params domain.Params) (*pipeline.Result, error) {
	if prev == nil {
		return o.pipeline.Run(ctx, ticks, params)
	}
	return o.pipeline.Rerun(ctx, prev, params)
}

// persist stores the run record, its alert events and, for a freshly
// computed rolling table, the feature rows.
func (o *Orchestrator) persist(ctx context.Context, runID string, res *pipeline.Result) error {
	if o.runStore == nil {
		return nil
	}

	record := domain.NewRunRecord(runID, o.datasetID, res.ParamsHash, res.Params, res.Summary, o.clock())
	if err := o.runStore.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if o.alertStore != nil {
		events, err := AlertEvents(runID, res)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			if err := o.alertStore.InsertBulk(ctx, events); err != nil {
				return fmt.Errorf("insert alert events: %w", err)
			}
		}
	}

	if o.featureRowStore != nil && !res.RollingReused {
		rows := make([]domain.FeatureRow, res.Rolling.Len())
		for i := range rows {
			rows[i] = res.Rolling.Row(i)
		}
		if err := o.featureRowStore.InsertBulk(ctx, runID, rows); err != nil {
			return fmt.Errorf("insert feature rows: %w", err)
		}
	}
	return nil
}

// AlertEvents converts the alert rows of res into storable events.
func AlertEvents(runID string, res *pipeline.Result) ([]*domain.AlertEvent, error) {
	idx, fwd, err := metrics.ForwardReturns(res.Alerts, res.Params.Horizon)
	if err != nil {
		return nil, err
	}

	at := res.Alerts
	events := make([]*domain.AlertEvent, len(idx))
	for k, i := range idx {
		events[k] = &domain.AlertEvent{
			RunID:         runID,
			RowIndex:      i,
			Timestamp:     at.Ticks.Timestamp[i],
			Mid:           at.Mid[i],
			Spread:        at.Spread[i],
			SpreadZ:       at.SpreadZ[i],
			TopDepth:      at.TopDepth[i],
			DepthMed:      at.DepthMed[i],
			SpreadSpike:   at.SpreadSpike[i],
			LiquidityGap:  at.LiquidityGap[i],
			ForwardReturn: fwd[k],
		}
	}
	return events, nil
}

func describe(p domain.Params) string {
	return fmt.Sprintf("w=%d/%d/%d z=%g f=%g h=%d",
		p.SpreadWindow, p.VolWindow, p.DepthWindow, p.ZThreshold, p.DepthFactor, p.Horizon)
}
