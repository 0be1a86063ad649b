package clickhouse

import (
	"context"
	"fmt"
	"time"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk adds ticks to a dataset. Fails entire batch on duplicate (dataset_id, ts).
func (s *TickStore) InsertBulk(ctx context.Context, datasetID string, ticks []domain.Tick) error {
	if datasetID == "" {
		return storage.ErrInvalidInput
	}
	if len(ticks) == 0 {
		return nil
	}

	// Check for intra-batch duplicates and find the batch bounds
	seen := make(map[int64]struct{}, len(ticks))
	minTs, maxTs := ticks[0].Timestamp, ticks[0].Timestamp
	for _, t := range ticks {
		k := t.Timestamp.UnixNano()
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		if t.Timestamp.Before(minTs) {
			minTs = t.Timestamp
		}
		if t.Timestamp.After(maxTs) {
			maxTs = t.Timestamp
		}
	}

	// MergeTree does not enforce uniqueness: check existing rows in the batch range
	existing, err := s.GetByTimeRange(ctx, datasetID, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check existing: %w", err)
	}
	for _, t := range existing {
		if _, dup := seen[t.Timestamp.UnixNano()]; dup {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (
			dataset_id, ts, bid, ask, bid_vol, ask_vol, trade_price, trade_size
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			datasetID, t.Timestamp.UTC(), t.Bid, t.Ask,
			t.BidVol, t.AskVol, t.TradePrice, t.TradeSize,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	start := time.Now()
	err = batch.Send()
	s.conn.observe("insert", start, err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDataset retrieves all ticks of a dataset, ordered by timestamp ASC.
func (s *TickStore) GetByDataset(ctx context.Context, datasetID string) ([]domain.Tick, error) {
	query := `
		SELECT ts, bid, ask, bid_vol, ask_vol, trade_price, trade_size
		FROM ticks
		WHERE dataset_id = ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query by dataset: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks of a dataset within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(ctx context.Context, datasetID string, start, end time.Time) ([]domain.Tick, error) {
	query := `
		SELECT ts, bid, ask, bid_vol, ask_vol, trade_price, trade_size
		FROM ticks
		WHERE dataset_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, datasetID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// ListDatasets returns every dataset with its row count and time bounds, ordered by ID.
func (s *TickStore) ListDatasets(ctx context.Context) ([]storage.DatasetInfo, error) {
	query := `
		SELECT dataset_id, count(), min(ts), max(ts)
		FROM ticks
		GROUP BY dataset_id
		ORDER BY dataset_id ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var result []storage.DatasetInfo
	for rows.Next() {
		var info storage.DatasetInfo
		var count uint64
		if err := rows.Scan(&info.ID, &count, &info.First, &info.Last); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		info.Rows = int(count)
		info.First = info.First.UTC()
		info.Last = info.Last.UTC()
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset rows: %w", err)
	}
	return result, nil
}

// scanTicks scans multiple rows.
func scanTicks(rows chRows) ([]domain.Tick, error) {
	var ticks []domain.Tick

	for rows.Next() {
		var t domain.Tick
		err := rows.Scan(
			&t.Timestamp, &t.Bid, &t.Ask, &t.BidVol,
			&t.AskVol, &t.TradePrice, &t.TradeSize,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		t.Timestamp = t.Timestamp.UTC()
		ticks = append(ticks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}
