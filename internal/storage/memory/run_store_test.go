package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	r := &domain.RunRecord{
		RunID:      "run-1",
		DatasetID:  "ds1",
		ParamsHash: "abc",
		Params:     domain.DefaultParams(),
		TotalRows:  100,
		AlertCount: 4,
		MeanReturn: ptr(0.001),
		CreatedAt:  base,
	}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TotalRows != 100 || got.Params != domain.DefaultParams() || *got.MeanReturn != 0.001 {
		t.Errorf("Unexpected run: %+v", got)
	}
	if got.StdReturn != nil {
		t.Errorf("Expected nil StdReturn, got %v", *got.StdReturn)
	}

	// Returned copy must not alias stored state
	*got.MeanReturn = 5
	again, _ := store.GetByID(ctx, "run-1")
	if *again.MeanReturn != 0.001 {
		t.Errorf("Store state was mutated through returned pointer")
	}
}

func TestRunStore_Errors(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &domain.RunRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	_ = store.Insert(ctx, &domain.RunRecord{RunID: "r"})
	if err := store.Insert(ctx, &domain.RunRecord{RunID: "r"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_ListByDatasetOrdered(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &domain.RunRecord{RunID: "c", DatasetID: "ds", CreatedAt: base.Add(time.Minute)})
	_ = store.Insert(ctx, &domain.RunRecord{RunID: "b", DatasetID: "ds", CreatedAt: base})
	_ = store.Insert(ctx, &domain.RunRecord{RunID: "a", DatasetID: "ds", CreatedAt: base})
	_ = store.Insert(ctx, &domain.RunRecord{RunID: "x", DatasetID: "other", CreatedAt: base})

	runs, err := store.ListByDataset(ctx, "ds")
	if err != nil {
		t.Fatalf("ListByDataset failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.RunID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Expected [a b c], got %v", ids)
	}
}
