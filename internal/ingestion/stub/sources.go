// Package stub provides fixed in-memory tick sources for testing.
package stub

import (
	"context"

	"microstructure-lab/internal/domain"
)

// StaticTickSource returns fixed ticks, optionally followed by an error.
// Ticks can be intentionally unordered to test sorting.
// Implements ingestion.TickSource interface.
type StaticTickSource struct {
	ticks []domain.Tick
	err   error
	calls int
}

// NewStaticTickSource creates a new stub source with the given ticks.
func NewStaticTickSource(ticks []domain.Tick) *StaticTickSource {
	return &StaticTickSource{ticks: ticks}
}

// WithError makes Fetch return err alongside the ticks.
func (s *StaticTickSource) WithError(err error) *StaticTickSource {
	s.err = err
	return s
}

// Name implements ingestion.TickSource.
func (s *StaticTickSource) Name() string { return "stub" }

// Fetch returns a copy of the ticks to prevent mutation.
func (s *StaticTickSource) Fetch(_ context.Context) ([]domain.Tick, error) {
	s.calls++
	out := make([]domain.Tick, len(s.ticks))
	copy(out, s.ticks)
	return out, s.err
}

// Calls returns how many times Fetch was called.
func (s *StaticTickSource) Calls() int { return s.calls }
