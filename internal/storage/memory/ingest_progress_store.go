package memory

import (
	"context"
	"sync"

	"microstructure-lab/internal/storage"
)

// IngestProgressStore is an in-memory implementation of storage.IngestProgressStore.
type IngestProgressStore struct {
	mu       sync.RWMutex
	progress map[string]storage.IngestProgress
}

// NewIngestProgressStore creates a new in-memory ingest progress store.
func NewIngestProgressStore() *IngestProgressStore {
	return &IngestProgressStore{
		progress: make(map[string]storage.IngestProgress),
	}
}

// GetLastIngested returns the progress of a dataset.
func (s *IngestProgressStore) GetLastIngested(_ context.Context, datasetID string) (*storage.IngestProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[datasetID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SetLastIngested saves the progress of a dataset.
func (s *IngestProgressStore) SetLastIngested(_ context.Context, progress *storage.IngestProgress) error {
	if progress == nil || progress.DatasetID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progress.DatasetID] = *progress
	return nil
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)
