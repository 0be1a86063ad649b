package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// AlertEventStore implements storage.AlertEventStore using PostgreSQL.
type AlertEventStore struct {
	pool *Pool
}

// NewAlertEventStore creates a new AlertEventStore.
func NewAlertEventStore(pool *Pool) *AlertEventStore {
	return &AlertEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertEventStore = (*AlertEventStore)(nil)

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *AlertEventStore) InsertBulk(ctx context.Context, events []*domain.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO alert_events (
			run_id, row_index, ts, mid, spread, spread_z, top_depth, depth_med,
			spread_spike, liquidity_gap, forward_return
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(query,
			e.RunID, e.RowIndex, e.Timestamp, e.Mid, e.Spread, e.SpreadZ,
			e.TopDepth, e.DepthMed, e.SpreadSpike, e.LiquidityGap, e.ForwardReturn,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert alert event: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByRun retrieves all events for a run, ordered by row_index ASC.
func (s *AlertEventStore) GetByRun(ctx context.Context, runID string) ([]*domain.AlertEvent, error) {
	query := `
		SELECT run_id, row_index, ts, mid, spread, spread_z, top_depth, depth_med,
		       spread_spike, liquidity_gap, forward_return
		FROM alert_events
		WHERE run_id = $1
		ORDER BY row_index ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query alert events: %w", err)
	}
	defer rows.Close()

	var result []*domain.AlertEvent
	for rows.Next() {
		var e domain.AlertEvent
		if err := rows.Scan(
			&e.RunID, &e.RowIndex, &e.Timestamp, &e.Mid, &e.Spread, &e.SpreadZ,
			&e.TopDepth, &e.DepthMed, &e.SpreadSpike, &e.LiquidityGap, &e.ForwardReturn,
		); err != nil {
			return nil, fmt.Errorf("scan alert event: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert events: %w", err)
	}
	return result, nil
}
