package reporting

import (
	"context"
	"fmt"
	"time"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/features"
	"microstructure-lab/internal/metrics"
	"microstructure-lab/internal/storage"
)

// DefaultRecentAlerts is the number of alerts listed in a generated report.
const DefaultRecentAlerts = 20

// Generator produces reports from stored data.
type Generator struct {
	tickStore  storage.TickStore
	alertStore storage.AlertEventStore
	aggregator *metrics.Aggregator
	recent     int
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	tickStore storage.TickStore,
	runStore storage.RunStore,
	alertStore storage.AlertEventStore,
) *Generator {
	return &Generator{
		tickStore:  tickStore,
		alertStore: alertStore,
		aggregator: metrics.NewAggregator(runStore, alertStore),
		recent:     DefaultRecentAlerts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRecentAlerts sets how many alerts of the reported run are listed.
func (g *Generator) WithRecentAlerts(n int) *Generator {
	g.recent = n
	return g
}

// Generate produces a report for the latest run of a dataset, with every
// stored run of the dataset in the sweep section.
// Returns storage.ErrNotFound if the dataset has no runs.
func (g *Generator) Generate(ctx context.Context, datasetID string) (*Report, error) {
	summaries, err := g.aggregator.SummarizeDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("no runs for dataset %s: %w", datasetID, storage.ErrNotFound)
	}

	latest := summaries[0]
	for _, s := range summaries[1:] {
		if s.Run.CreatedAt.After(latest.Run.CreatedAt) {
			latest = s
		}
	}

	data, err := g.generateDataSection(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	events, err := g.alertStore.GetByRun(ctx, latest.Run.RunID)
	if err != nil {
		return nil, err
	}

	var sweep []SweepRow
	if len(summaries) > 1 {
		sweep = make([]SweepRow, len(summaries))
		for i, s := range summaries {
			sweep[i] = SweepRow{RunID: s.Run.RunID, Params: s.Run.Params, Summary: s.Summary}
		}
	}

	return &Report{
		GeneratedAt:  g.now(),
		DatasetID:    datasetID,
		RunID:        latest.Run.RunID,
		ParamsHash:   latest.Run.ParamsHash,
		Params:       latest.Run.Params,
		Data:         data,
		Summary:      latest.Summary,
		Sweep:        sweep,
		RecentAlerts: Tail(AlertRowsFromEvents(events), g.recent),
	}, nil
}

// generateDataSection loads the dataset ticks and inspects their spacing.
func (g *Generator) generateDataSection(ctx context.Context, datasetID string) (DataSection, error) {
	if g.tickStore == nil {
		return DataSection{}, nil
	}
	ticks, err := g.tickStore.GetByDataset(ctx, datasetID)
	if err != nil {
		return DataSection{}, err
	}
	table := domain.NewTickTable(ticks)
	return NewDataSection(table, features.InspectSpacing(table)), nil
}
