package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/storage"
)

// DefaultBatchSize is the number of ticks per InsertBulk call.
const DefaultBatchSize = 5000

// Runner moves ticks from a source into the tick store.
// It enforces timestamp ordering and resumes after the last stored tick.
type Runner struct {
	source        TickSource
	tickStore     storage.TickStore
	progressStore storage.IngestProgressStore
	metrics       *observability.Metrics
	logger        *slog.Logger
	batchSize     int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source        TickSource
	TickStore     storage.TickStore
	ProgressStore storage.IngestProgressStore // optional
	Metrics       *observability.Metrics      // optional
	Logger        *slog.Logger
	BatchSize     int // Default: DefaultBatchSize
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		source:        opts.Source,
		tickStore:     opts.TickStore,
		progressStore: opts.ProgressStore,
		metrics:       opts.Metrics,
		logger:        logger,
		batchSize:     batchSize,
	}
}

// IngestResult summarizes one ingestion.
type IngestResult struct {
	Fetched    int
	Duplicates int // dropped for sharing a timestamp
	Stale      int // at or before the last ingested timestamp
	Inserted   int
}

// Ingest fetches one batch from the source and stores it under datasetID.
// A partial fetch is stored before the fetch error is returned.
func (r *Runner) Ingest(ctx context.Context, datasetID string) (*IngestResult, error) {
	if datasetID == "" {
		return nil, storage.ErrInvalidInput
	}
	name := r.source.Name()

	ticks, fetchErr := r.source.Fetch(ctx)
	if fetchErr != nil {
		r.metrics.RecordIngestError(name)
		if len(ticks) == 0 {
			return nil, fmt.Errorf("fetch from %s: %w", name, fetchErr)
		}
		r.logger.Warn("partial fetch, storing captured ticks", "source", name, "ticks", len(ticks), "error", fetchErr)
	}

	result := &IngestResult{Fetched: len(ticks)}

	// Enforce deterministic ordering
	SortTicks(ticks)
	ticks, result.Duplicates = DedupeTicks(ticks)

	progress, err := r.loadProgress(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		fresh := ticks[:0]
		for _, t := range ticks {
			if t.Timestamp.After(progress.LastTimestamp) {
				fresh = append(fresh, t)
			}
		}
		result.Stale = len(ticks) - len(fresh)
		ticks = fresh
	}

	for start := 0; start < len(ticks); start += r.batchSize {
		end := min(start+r.batchSize, len(ticks))
		batch := ticks[start:end]
		if err := r.tickStore.InsertBulk(ctx, datasetID, batch); err != nil {
			r.metrics.RecordIngestError(name)
			return result, fmt.Errorf("insert ticks [%d,%d): %w", start, end, err)
		}
		result.Inserted += len(batch)
		r.metrics.RecordTicksIngested(name, len(batch))

		if err := r.saveProgress(ctx, datasetID, progress, batch); err != nil {
			return result, err
		}
		progress = r.advance(datasetID, progress, batch)
	}

	r.logger.Info("ingestion finished",
		"source", name,
		"dataset", datasetID,
		"fetched", result.Fetched,
		"duplicates", result.Duplicates,
		"stale", result.Stale,
		"inserted", result.Inserted)

	if fetchErr != nil {
		return result, fmt.Errorf("fetch from %s: %w", name, fetchErr)
	}
	return result, nil
}

func (r *Runner) loadProgress(ctx context.Context, datasetID string) (*storage.IngestProgress, error) {
	if r.progressStore == nil {
		return nil, nil
	}
	p, err := r.progressStore.GetLastIngested(ctx, datasetID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ingest progress: %w", err)
	}
	return p, nil
}

func (r *Runner) saveProgress(ctx context.Context, datasetID string, prev *storage.IngestProgress, batch []domain.Tick) error {
	if r.progressStore == nil {
		return nil
	}
	if err := r.progressStore.SetLastIngested(ctx, r.advance(datasetID, prev, batch)); err != nil {
		return fmt.Errorf("save ingest progress: %w", err)
	}
	return nil
}

// advance returns the progress after batch was stored. batch must be sorted and non-empty.
func (r *Runner) advance(datasetID string, prev *storage.IngestProgress, batch []domain.Tick) *storage.IngestProgress {
	next := &storage.IngestProgress{
		DatasetID:     datasetID,
		LastTimestamp: batch[len(batch)-1].Timestamp,
		Rows:          int64(len(batch)),
	}
	if prev != nil {
		next.Rows += prev.Rows
	}
	return next
}
