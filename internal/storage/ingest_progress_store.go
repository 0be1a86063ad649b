package storage

import (
	"context"
	"time"
)

// IngestProgress is the last tick persisted for a dataset.
type IngestProgress struct {
	DatasetID     string
	LastTimestamp time.Time
	Rows          int64 // total rows ingested so far
}

// IngestProgressStore persists ingestion state per dataset.
// This lets a restarted capture skip ticks it already stored.
type IngestProgressStore interface {
	// GetLastIngested returns the progress of a dataset.
	// Returns ErrNotFound if nothing has been ingested yet.
	GetLastIngested(ctx context.Context, datasetID string) (*IngestProgress, error)

	// SetLastIngested saves the progress of a dataset.
	SetLastIngested(ctx context.Context, progress *IngestProgress) error
}
