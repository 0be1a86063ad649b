package orchestrator

import (
	"microstructure-lab/internal/domain"
)

// Grid lists candidate values per parameter. An empty list means the default.
type Grid struct {
	SpreadWindows []int     `json:"spread_windows" yaml:"spread_windows"`
	VolWindows    []int     `json:"vol_windows" yaml:"vol_windows"`
	DepthWindows  []int     `json:"depth_windows" yaml:"depth_windows"`
	ZThresholds   []float64 `json:"z_thresholds" yaml:"z_thresholds"`
	DepthFactors  []float64 `json:"depth_factors" yaml:"depth_factors"`
	Horizons      []int     `json:"horizons" yaml:"horizons"`
}

// SingleGrid returns a grid holding only p.
func SingleGrid(p domain.Params) Grid {
	return Grid{
		SpreadWindows: []int{p.SpreadWindow},
		VolWindows:    []int{p.VolWindow},
		DepthWindows:  []int{p.DepthWindow},
		ZThresholds:   []float64{p.ZThreshold},
		DepthFactors:  []float64{p.DepthFactor},
		Horizons:      []int{p.Horizon},
	}
}

// WithDefaults fills every empty list of g with the matching value of p.
func (g Grid) WithDefaults(p domain.Params) Grid {
	g.SpreadWindows = orDefault(g.SpreadWindows, p.SpreadWindow)
	g.VolWindows = orDefault(g.VolWindows, p.VolWindow)
	g.DepthWindows = orDefault(g.DepthWindows, p.DepthWindow)
	g.ZThresholds = orDefault(g.ZThresholds, p.ZThreshold)
	g.DepthFactors = orDefault(g.DepthFactors, p.DepthFactor)
	g.Horizons = orDefault(g.Horizons, p.Horizon)
	return g
}

// Params expands the grid into the cartesian product. Windows vary in the
// outer loops so that sets sharing a rolling table are adjacent.
func (g Grid) Params() []domain.Params {
	g = g.WithDefaults(domain.DefaultParams())
	spread, vol, depth := g.SpreadWindows, g.VolWindows, g.DepthWindows
	zs, factors, horizons := g.ZThresholds, g.DepthFactors, g.Horizons

	out := make([]domain.Params, 0, len(spread)*len(vol)*len(depth)*len(zs)*len(factors)*len(horizons))
	for _, sw := range spread {
		for _, vw := range vol {
			for _, dw := range depth {
				for _, z := range zs {
					for _, f := range factors {
						for _, h := range horizons {
							out = append(out, domain.Params{
								SpreadWindow: sw,
								VolWindow:    vw,
								DepthWindow:  dw,
								ZThreshold:   z,
								DepthFactor:  f,
								Horizon:      h,
							})
						}
					}
				}
			}
		}
	}
	return out
}

// Size returns the number of parameter sets.
func (g Grid) Size() int {
	return len(g.Params())
}

func orDefault[T any](vs []T, d T) []T {
	if len(vs) == 0 {
		return []T{d}
	}
	return vs
}
