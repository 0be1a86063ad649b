package memory

import (
	"context"
	"errors"
	"testing"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

func TestAlertEventStore_InsertBulkAndGet(t *testing.T) {
	store := NewAlertEventStore()
	ctx := context.Background()

	events := []*domain.AlertEvent{
		{RunID: "r1", RowIndex: 7, SpreadSpike: true, ForwardReturn: ptr(0.002)},
		{RunID: "r1", RowIndex: 3, LiquidityGap: true},
		{RunID: "r2", RowIndex: 3, SpreadSpike: true},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 || got[0].RowIndex != 3 || got[1].RowIndex != 7 {
		t.Fatalf("Unexpected events: %+v", got)
	}
	if got[0].ForwardReturn != nil || *got[1].ForwardReturn != 0.002 {
		t.Errorf("Forward returns not preserved")
	}
}

func TestAlertEventStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewAlertEventStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.AlertEvent{{RunID: "r1", RowIndex: 1}})
	err := store.InsertBulk(ctx, []*domain.AlertEvent{{RunID: "r1", RowIndex: 2}, {RunID: "r1", RowIndex: 1}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRun(ctx, "r1")
	if len(got) != 1 {
		t.Errorf("Expected 1 event after failed batch, got %d", len(got))
	}

	if err := store.InsertBulk(ctx, []*domain.AlertEvent{nil}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestFeatureRowStore_InsertBulkAndGet(t *testing.T) {
	store := NewFeatureRowStore()
	ctx := context.Background()

	rows := []domain.FeatureRow{{RowIndex: 1, Mid: 2}, {RowIndex: 0, Mid: 1}}
	if err := store.InsertBulk(ctx, "r1", rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	got, err := store.GetByRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 || got[0].Mid != 1 || got[1].Mid != 2 {
		t.Errorf("Unexpected rows: %+v", got)
	}

	if err := store.InsertBulk(ctx, "r1", rows[:1]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestIngestProgressStore_SetAndGet(t *testing.T) {
	store := NewIngestProgressStore()
	ctx := context.Background()

	if _, err := store.GetLastIngested(ctx, "ds"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	p := &storage.IngestProgress{DatasetID: "ds", LastTimestamp: base, Rows: 10}
	if err := store.SetLastIngested(ctx, p); err != nil {
		t.Fatalf("SetLastIngested failed: %v", err)
	}
	got, err := store.GetLastIngested(ctx, "ds")
	if err != nil {
		t.Fatalf("GetLastIngested failed: %v", err)
	}
	if got.Rows != 10 || !got.LastTimestamp.Equal(base) {
		t.Errorf("Unexpected progress: %+v", got)
	}
}
