package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// ErrInconsistentRun is returned when stored alert events disagree with the run record.
var ErrInconsistentRun = errors.New("stored alert events do not match run record")

// RunSummary pairs a stored run with its recomputed outcome.
type RunSummary struct {
	Run     *domain.RunRecord
	Summary *domain.OutcomeSummary
}

// Aggregator recomputes outcome summaries from stored runs and alert events.
type Aggregator struct {
	runStore   storage.RunStore
	alertStore storage.AlertEventStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.RunStore, alertStore storage.AlertEventStore) *Aggregator {
	return &Aggregator{
		runStore:   runStore,
		alertStore: alertStore,
	}
}

// Summarize loads a run and its alert events and rebuilds the full summary,
// including the distribution statistics the run record does not keep.
// Returns storage.ErrNotFound if the run does not exist.
func (a *Aggregator) Summarize(ctx context.Context, runID string) (*domain.OutcomeSummary, error) {
	run, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	return a.summarizeRun(ctx, run)
}

// SummarizeDataset rebuilds summaries for every run of a dataset,
// sorted by parameters then run ID.
func (a *Aggregator) SummarizeDataset(ctx context.Context, datasetID string) ([]RunSummary, error) {
	runs, err := a.runStore.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		s, err := a.summarizeRun(ctx, run)
		if err != nil {
			return nil, err
		}
		out = append(out, RunSummary{Run: run, Summary: s})
	}

	SortRunSummaries(out)
	return out, nil
}

func (a *Aggregator) summarizeRun(ctx context.Context, run *domain.RunRecord) (*domain.OutcomeSummary, error) {
	events, err := a.alertStore.GetByRun(ctx, run.RunID)
	if err != nil {
		return nil, err
	}

	if len(events) != run.AlertCount {
		return nil, fmt.Errorf("%w: run %s has %d events, record says %d",
			ErrInconsistentRun, run.RunID, len(events), run.AlertCount)
	}

	s := &domain.OutcomeSummary{
		Horizon:           run.Params.Horizon,
		TotalRows:         run.TotalRows,
		AlertCount:        run.AlertCount,
		SpreadSpikeCount:  run.SpreadSpikeCount,
		LiquidityGapCount: run.LiquidityGapCount,
	}
	if s.TotalRows > 0 {
		s.PctAlerts = 100 * float64(s.AlertCount) / float64(s.TotalRows)
	}

	returns := make([]float64, 0, len(events))
	for _, e := range events {
		if e.ForwardReturn != nil {
			returns = append(returns, *e.ForwardReturn)
		}
	}
	summarizeReturns(s, returns)

	if s.SampleCount != run.SampleCount {
		return nil, fmt.Errorf("%w: run %s has %d samples, record says %d",
			ErrInconsistentRun, run.RunID, s.SampleCount, run.SampleCount)
	}
	return s, nil
}

// SortRunSummaries sorts by (spread_window, vol_window, depth_window,
// z_threshold, depth_factor, horizon, run_id).
func SortRunSummaries(rows []RunSummary) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !ParamsEqual(rows[i].Run.Params, rows[j].Run.Params) {
			return ParamsLess(rows[i].Run.Params, rows[j].Run.Params)
		}
		return rows[i].Run.RunID < rows[j].Run.RunID
	})
}

// ParamsEqual reports whether two parameter sets are identical.
func ParamsEqual(a, b domain.Params) bool {
	return a == b
}

// ParamsLess orders parameter sets field by field.
func ParamsLess(a, b domain.Params) bool {
	switch {
	case a.SpreadWindow != b.SpreadWindow:
		return a.SpreadWindow < b.SpreadWindow
	case a.VolWindow != b.VolWindow:
		return a.VolWindow < b.VolWindow
	case a.DepthWindow != b.DepthWindow:
		return a.DepthWindow < b.DepthWindow
	case a.ZThreshold != b.ZThreshold:
		return a.ZThreshold < b.ZThreshold
	case a.DepthFactor != b.DepthFactor:
		return a.DepthFactor < b.DepthFactor
	}
	return a.Horizon < b.Horizon
}
