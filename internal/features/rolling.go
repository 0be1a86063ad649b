package features

import (
	"context"

	"golang.org/x/sync/errgroup"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/rolling"
)

// ComputeRollingStats appends trailing-window statistics to ft.
// Windows are row counts; the first W-1 rows use the partial window.
//
//   - spread_mean, spread_std over spreadWindow
//   - spread_z = (spread - spread_mean) / (spread_std + 1e-9)
//   - vol = sample std of ret_1s over volWindow
//   - depth_med = median of top_depth over depthWindow
func ComputeRollingStats(ft *domain.FeatureTable, spreadWindow, volWindow, depthWindow int) (*domain.RollingTable, error) {
	w := domain.Windows{Spread: spreadWindow, Vol: volWindow, Depth: depthWindow}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if ft == nil {
		return nil, &domain.SchemaError{Column: "spread", Reason: "feature table is nil"}
	}

	rt := newRollingTable(ft, w)
	rt.SpreadMean, rt.SpreadStd, rt.SpreadZ = spreadStats(ft.Spread, w.Spread)
	rt.Vol = rolling.Std(ft.Ret1s, w.Vol)
	rt.DepthMed = rolling.Median(ft.TopDepth, w.Depth)
	return rt, nil
}

// ComputeRollingStatsParallel is ComputeRollingStats with the three
// independent column scans run concurrently. Output is identical to the
// serial version.
func ComputeRollingStatsParallel(ctx context.Context, ft *domain.FeatureTable, w domain.Windows) (*domain.RollingTable, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if ft == nil {
		return nil, &domain.SchemaError{Column: "spread", Reason: "feature table is nil"}
	}

	rt := newRollingTable(ft, w)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rt.SpreadMean, rt.SpreadStd, rt.SpreadZ = spreadStats(ft.Spread, w.Spread)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rt.Vol = rolling.Std(ft.Ret1s, w.Vol)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rt.DepthMed = rolling.Median(ft.TopDepth, w.Depth)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rt, nil
}

func newRollingTable(ft *domain.FeatureTable, w domain.Windows) *domain.RollingTable {
	return &domain.RollingTable{FeatureTable: ft, Windows: w}
}

func spreadStats(spread []float64, w int) (mean, std, z []float64) {
	mean, std = rolling.MeanStd(spread, w)
	z = make([]float64, len(spread))
	for i, s := range spread {
		z[i] = (s - mean[i]) / (std[i] + domain.ZEpsilon)
	}
	return mean, std, z
}
