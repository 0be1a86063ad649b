package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, dataset_id, params_hash,
	spread_window, vol_window, depth_window, z_threshold, depth_factor, horizon,
	total_rows, alert_count, spread_spike_count, liquidity_gap_count, sample_count,
	mean_return, std_return, created_at
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO analysis_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.DatasetID, r.ParamsHash,
		r.Params.SpreadWindow, r.Params.VolWindow, r.Params.DepthWindow,
		r.Params.ZThreshold, r.Params.DepthFactor, r.Params.Horizon,
		r.TotalRows, r.AlertCount, r.SpreadSpikeCount, r.LiquidityGapCount, r.SampleCount,
		r.MeanReturn, r.StdReturn, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListByDataset retrieves all runs of a dataset, ordered by created_at ASC, run_id ASC.
func (s *RunStore) ListByDataset(ctx context.Context, datasetID string) ([]*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs
		WHERE dataset_id = $1
		ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query runs by dataset: %w", err)
	}
	defer rows.Close()

	var result []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	err := row.Scan(
		&r.RunID, &r.DatasetID, &r.ParamsHash,
		&r.Params.SpreadWindow, &r.Params.VolWindow, &r.Params.DepthWindow,
		&r.Params.ZThreshold, &r.Params.DepthFactor, &r.Params.Horizon,
		&r.TotalRows, &r.AlertCount, &r.SpreadSpikeCount, &r.LiquidityGapCount, &r.SampleCount,
		&r.MeanReturn, &r.StdReturn, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
