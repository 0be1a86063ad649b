package ingestion

import (
	"context"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/synthetic"
)

// TickSource provides raw ticks from an external source.
type TickSource interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns a bounded batch of ticks.
	// Ticks may be unordered; Runner enforces timestamp ordering.
	Fetch(ctx context.Context) ([]domain.Tick, error)
}

// SyntheticSource generates seeded random-walk ticks.
type SyntheticSource struct {
	cfg synthetic.Config
}

// NewSyntheticSource creates a synthetic source for cfg.
func NewSyntheticSource(cfg synthetic.Config) *SyntheticSource {
	return &SyntheticSource{cfg: cfg}
}

// Name implements TickSource.
func (s *SyntheticSource) Name() string { return "synthetic" }

// Fetch implements TickSource.
func (s *SyntheticSource) Fetch(ctx context.Context) ([]domain.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return synthetic.Generate(s.cfg), nil
}
