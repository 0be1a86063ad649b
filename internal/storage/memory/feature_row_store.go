package memory

import (
	"context"
	"sort"
	"sync"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// FeatureRowStore is an in-memory implementation of storage.FeatureRowStore.
type FeatureRowStore struct {
	mu   sync.RWMutex
	data map[string]map[int]domain.FeatureRow // run_id -> row_index -> row
}

// NewFeatureRowStore creates a new in-memory feature row store.
func NewFeatureRowStore() *FeatureRowStore {
	return &FeatureRowStore{
		data: make(map[string]map[int]domain.FeatureRow),
	}
}

// InsertBulk adds feature rows for a run. Fails entire batch on duplicate.
func (s *FeatureRowStore) InsertBulk(_ context.Context, runID string, rows []domain.FeatureRow) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batchKeys := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if _, exists := existing[r.RowIndex]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.RowIndex]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.RowIndex] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int]domain.FeatureRow, len(rows))
		s.data[runID] = existing
	}
	for _, r := range rows {
		existing[r.RowIndex] = r
	}
	return nil
}

// GetByRun retrieves all rows for a run, ordered by row_index ASC.
func (s *FeatureRowStore) GetByRun(_ context.Context, runID string) ([]domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FeatureRow, 0, len(s.data[runID]))
	for _, r := range s.data[runID] {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RowIndex < result[j].RowIndex })
	return result, nil
}

var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)
