package clickhouse

import (
	"context"
	"fmt"
	"time"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// FeatureRowStore implements storage.FeatureRowStore using ClickHouse.
type FeatureRowStore struct {
	conn *Conn
}

// NewFeatureRowStore creates a new FeatureRowStore.
func NewFeatureRowStore(conn *Conn) *FeatureRowStore {
	return &FeatureRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)

const featureColumns = `
	row_index, ts, bid, ask, bid_vol, ask_vol, trade_price, trade_size,
	spread, mid, ret_1s, vwap, imbalance_top, abs_imbalance_top, top_depth,
	spread_mean, spread_std, spread_z, vol, depth_med
`

// InsertBulk adds feature rows for a run. Fails entire batch on duplicate (run_id, row_index).
func (s *FeatureRowStore) InsertBulk(ctx context.Context, runID string, rows []domain.FeatureRow) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if r.RowIndex < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.RowIndex]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.RowIndex] = struct{}{}
	}

	// Rows of a run are written once
	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO feature_rows (run_id, `+featureColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			runID, uint32(r.RowIndex), r.Timestamp.UTC(),
			r.Bid, r.Ask, r.BidVol, r.AskVol, r.TradePrice, r.TradeSize,
			r.Spread, r.Mid, r.Ret1s, r.VWAP, r.ImbalanceTop, r.AbsImbalanceTop, r.TopDepth,
			r.SpreadMean, r.SpreadStd, r.SpreadZ, r.Vol, r.DepthMed,
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

// GetByRun retrieves all rows for a run, ordered by row_index ASC.
func (s *FeatureRowStore) GetByRun(ctx context.Context, runID string) ([]domain.FeatureRow, error) {
	query := `SELECT ` + featureColumns + ` FROM feature_rows WHERE run_id = ? ORDER BY row_index ASC`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	var result []domain.FeatureRow
	for rows.Next() {
		var r domain.FeatureRow
		var idx uint32
		if err := rows.Scan(
			&idx, &r.Timestamp,
			&r.Bid, &r.Ask, &r.BidVol, &r.AskVol, &r.TradePrice, &r.TradeSize,
			&r.Spread, &r.Mid, &r.Ret1s, &r.VWAP, &r.ImbalanceTop, &r.AbsImbalanceTop, &r.TopDepth,
			&r.SpreadMean, &r.SpreadStd, &r.SpreadZ, &r.Vol, &r.DepthMed,
		); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		r.RowIndex = int(idx)
		r.Timestamp = r.Timestamp.UTC()
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}
	return result, nil
}

func (s *FeatureRowStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM feature_rows WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
