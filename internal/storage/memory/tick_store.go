package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/lookup"
	"microstructure-lab/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Tick // dataset_id -> unix nanos -> tick
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string]map[int64]domain.Tick),
	}
}

// InsertBulk adds ticks to a dataset. Fails entire batch on duplicate.
func (s *TickStore) InsertBulk(_ context.Context, datasetID string, ticks []domain.Tick) error {
	if datasetID == "" {
		return storage.ErrInvalidInput
	}
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[datasetID]
	batchKeys := make(map[int64]struct{}, len(ticks))

	// First pass: check for duplicates (existing + intra-batch)
	for _, t := range ticks {
		key := t.Timestamp.UnixNano()
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int64]domain.Tick, len(ticks))
		s.data[datasetID] = existing
	}
	for _, t := range ticks {
		existing[t.Timestamp.UnixNano()] = t
	}

	return nil
}

// GetByDataset retrieves all ticks of a dataset, ordered by timestamp ASC.
func (s *TickStore) GetByDataset(_ context.Context, datasetID string) ([]domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Tick, 0, len(s.data[datasetID]))
	for _, t := range s.data[datasetID] {
		result = append(result, t)
	}
	sortTicks(result)
	return result, nil
}

// GetByTimeRange retrieves ticks of a dataset within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(ctx context.Context, datasetID string, start, end time.Time) ([]domain.Tick, error) {
	all, err := s.GetByDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	ts := make([]time.Time, len(all))
	for i, t := range all {
		ts[i] = t.Timestamp
	}
	from := lookup.IndexAtOrAfter(ts, start)
	to := lookup.IndexAtOrAfter(ts, end.Add(time.Nanosecond))
	if from >= to {
		return nil, nil
	}
	return all[from:to], nil
}

// ListDatasets returns every dataset with its row count and time bounds.
func (s *TickStore) ListDatasets(_ context.Context) ([]storage.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.DatasetInfo, 0, len(s.data))
	for id, ticks := range s.data {
		info := storage.DatasetInfo{ID: id, Rows: len(ticks)}
		first := true
		for _, t := range ticks {
			if first || t.Timestamp.Before(info.First) {
				info.First = t.Timestamp
			}
			if first || t.Timestamp.After(info.Last) {
				info.Last = t.Timestamp
			}
			first = false
		}
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func sortTicks(ticks []domain.Tick) {
	sort.Slice(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})
}

var _ storage.TickStore = (*TickStore)(nil)
