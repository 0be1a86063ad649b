package memory

import (
	"context"
	"sort"
	"sync"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run by its ID.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// ListByDataset retrieves all runs of a dataset, ordered by created_at ASC, run_id ASC.
func (s *RunStore) ListByDataset(_ context.Context, datasetID string) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunRecord
	for _, r := range s.data {
		if r.DatasetID == datasetID {
			result = append(result, copyRun(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

func copyRun(r *domain.RunRecord) *domain.RunRecord {
	c := *r
	if r.MeanReturn != nil {
		v := *r.MeanReturn
		c.MeanReturn = &v
	}
	if r.StdReturn != nil {
		v := *r.StdReturn
		c.StdReturn = &v
	}
	return &c
}

var _ storage.RunStore = (*RunStore)(nil)
