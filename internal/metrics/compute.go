package metrics

import (
	"math"
	"sort"

	"microstructure-lab/internal/domain"
)

// summarizeReturns fills the statistic fields of s from sampled forward returns.
// With no samples every statistic stays nil.
func summarizeReturns(s *domain.OutcomeSummary, returns []float64) {
	n := len(returns)
	s.SampleCount = n
	if n == 0 {
		return
	}

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	mean := computeMean(returns)
	std := computePopulationStddev(returns, mean)

	s.MeanReturn = ptr(mean)
	s.StdReturn = ptr(std)
	s.MeanReturnBps = ptr(mean * domain.BasisPoints)
	s.StdReturnBps = ptr(std * domain.BasisPoints)
	s.MedianReturn = ptr(computePercentile(sorted, 0.50))
	s.MinReturn = ptr(sorted[0])
	s.MaxReturn = ptr(sorted[n-1])
	s.HitRate = ptr(computeHitRate(returns))
}

// computeMean calculates arithmetic mean.
func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computePopulationStddev calculates standard deviation with an n denominator.
func computePopulationStddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeHitRate returns the share of strictly positive values.
func computeHitRate(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	hits := 0
	for _, x := range xs {
		if x > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(xs))
}

func ptr(v float64) *float64 { return &v }
