package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// AlertEventStore is an in-memory implementation of storage.AlertEventStore.
type AlertEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AlertEvent // keyed by (run_id, row_index)
}

// NewAlertEventStore creates a new in-memory alert event store.
func NewAlertEventStore() *AlertEventStore {
	return &AlertEventStore{
		data: make(map[string]*domain.AlertEvent),
	}
}

func alertKey(runID string, rowIndex int) string {
	return fmt.Sprintf("%s|%d", runID, rowIndex)
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *AlertEventStore) InsertBulk(_ context.Context, events []*domain.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := alertKey(e.RunID, e.RowIndex)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		s.data[alertKey(e.RunID, e.RowIndex)] = copyAlert(e)
	}
	return nil
}

// GetByRun retrieves all events for a run, ordered by row_index ASC.
func (s *AlertEventStore) GetByRun(_ context.Context, runID string) ([]*domain.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AlertEvent
	for _, e := range s.data {
		if e.RunID == runID {
			result = append(result, copyAlert(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RowIndex < result[j].RowIndex })
	return result, nil
}

func copyAlert(e *domain.AlertEvent) *domain.AlertEvent {
	c := *e
	if e.ForwardReturn != nil {
		v := *e.ForwardReturn
		c.ForwardReturn = &v
	}
	return &c
}

var _ storage.AlertEventStore = (*AlertEventStore)(nil)
