package storage

import (
	"context"
	"time"

	"microstructure-lab/internal/domain"
)

// DatasetInfo describes one stored tick dataset.
type DatasetInfo struct {
	ID    string
	Rows  int
	First time.Time
	Last  time.Time
}

// TickStore provides access to ticks storage, keyed by (dataset_id, timestamp).
type TickStore interface {
	// InsertBulk adds ticks to a dataset. Fails entire batch on any duplicate timestamp.
	InsertBulk(ctx context.Context, datasetID string, ticks []domain.Tick) error

	// GetByDataset retrieves all ticks of a dataset, ordered by timestamp ASC.
	GetByDataset(ctx context.Context, datasetID string) ([]domain.Tick, error)

	// GetByTimeRange retrieves ticks of a dataset within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, datasetID string, start, end time.Time) ([]domain.Tick, error)

	// ListDatasets returns every dataset with its row count and time bounds, ordered by ID.
	ListDatasets(ctx context.Context) ([]DatasetInfo, error)
}

// FeatureRowStore provides access to feature_rows storage, keyed by (run_id, row_index).
type FeatureRowStore interface {
	// InsertBulk adds feature rows for a run. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, runID string, rows []domain.FeatureRow) error

	// GetByRun retrieves all rows for a run, ordered by row_index ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.FeatureRow, error)
}

// RunStore provides access to analysis_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// ListByDataset retrieves all runs of a dataset, ordered by created_at ASC, run_id ASC.
	ListByDataset(ctx context.Context, datasetID string) ([]*domain.RunRecord, error)
}

// AlertEventStore provides access to alert_events storage, keyed by (run_id, row_index).
type AlertEventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.AlertEvent) error

	// GetByRun retrieves all events for a run, ordered by row_index ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.AlertEvent, error)
}
