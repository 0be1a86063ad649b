package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"microstructure-lab/internal/storage"
)

// IngestProgressStore is a PostgreSQL implementation of storage.IngestProgressStore.
// One row per dataset in ingest_progress.
type IngestProgressStore struct {
	pool *Pool
}

// NewIngestProgressStore creates a new PostgreSQL ingest progress store.
func NewIngestProgressStore(pool *Pool) *IngestProgressStore {
	return &IngestProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)

// GetLastIngested returns the progress of a dataset.
func (s *IngestProgressStore) GetLastIngested(ctx context.Context, datasetID string) (*storage.IngestProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT dataset_id, last_ts, rows_ingested
		FROM ingest_progress
		WHERE dataset_id = $1
	`, datasetID)

	var progress storage.IngestProgress
	err := row.Scan(&progress.DatasetID, &progress.LastTimestamp, &progress.Rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	progress.LastTimestamp = progress.LastTimestamp.UTC()

	return &progress, nil
}

// SetLastIngested saves the progress of a dataset.
// Uses upsert to handle initial insert and subsequent updates.
func (s *IngestProgressStore) SetLastIngested(ctx context.Context, progress *storage.IngestProgress) error {
	if progress == nil || progress.DatasetID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_progress (dataset_id, last_ts, rows_ingested, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (dataset_id) DO UPDATE
		SET last_ts = EXCLUDED.last_ts,
		    rows_ingested = EXCLUDED.rows_ingested,
		    updated_at = NOW()
	`, progress.DatasetID, progress.LastTimestamp, progress.Rows)

	return err
}
