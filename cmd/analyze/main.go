// Command analyze runs the alert pipeline over one tick dataset, either with
// a single parameter set or a sweep grid, and exports the results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"microstructure-lab/internal/config"
	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/ingestion"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/orchestrator"
	"microstructure-lab/internal/pipeline"
	"microstructure-lab/internal/storage/stores"
	"microstructure-lab/internal/synthetic"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file (ignored when missing)")
	source := flag.String("source", "csv", "Tick source: csv, store or synthetic")
	input := flag.String("input", "", "CSV file for --source=csv")
	tz := flag.String("tz", "UTC", "Time zone of naive CSV timestamps")
	datasetID := flag.String("dataset", "", "Dataset ID (defaults to the input file name)")
	rows := flag.Int("rows", synthetic.DefaultConfig().Rows, "Rows for --source=synthetic")
	seed := flag.Int64("seed", synthetic.DefaultConfig().Seed, "Seed for --source=synthetic")
	gridPath := flag.String("grid", "", "YAML sweep grid; empty lists take the engine defaults")
	outputDir := flag.String("output-dir", "", "Output directory (overrides output.dir)")
	xlsx := flag.Bool("xlsx", false, "Also write alerts.xlsx")
	parallel := flag.Bool("parallel", false, "Compute rolling columns concurrently")
	persist := flag.Bool("persist", false, "Store runs, alert events and feature rows")
	migrate := flag.Bool("migrate", false, "Apply migrations before persisting")

	spreadWindow := flag.Int("spread-window", 0, "Spread window in rows (0 keeps config)")
	volWindow := flag.Int("vol-window", 0, "Volatility window in rows (0 keeps config)")
	depthWindow := flag.Int("depth-window", 0, "Depth median window in rows (0 keeps config)")
	zThreshold := flag.Float64("z", 0, "Spread z-score threshold (0 keeps config)")
	depthFactor := flag.Float64("depth-factor", 0, "Liquidity gap factor (0 keeps config)")
	horizon := flag.Int("horizon", 0, "Forward return horizon in rows (0 keeps config)")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{File: *configPath, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logging, os.Stderr).With("cmd", "analyze")

	params := cfg.Engine.Params()
	overrideInt(&params.SpreadWindow, *spreadWindow)
	overrideInt(&params.VolWindow, *volWindow)
	overrideInt(&params.DepthWindow, *depthWindow)
	overrideFloat(&params.ZThreshold, *zThreshold)
	overrideFloat(&params.DepthFactor, *depthFactor)
	overrideInt(&params.Horizon, *horizon)
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(os.Stderr)
		if err != nil {
			logger.Error("setup tracing", "error", err)
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	grid := orchestrator.SingleGrid(params)
	if *gridPath != "" {
		grid, err = loadGrid(*gridPath, params)
		if err != nil {
			logger.Error("load grid", "error", err)
			os.Exit(2)
		}
	}

	var set *stores.Set
	if *persist || *source == "store" {
		set, err = stores.Open(ctx, cfg.Storage, stores.Options{Migrate: *migrate, Logger: logger})
		if err != nil {
			logger.Error("open stores", "error", err)
			os.Exit(1)
		}
		defer set.Close()
	}

	id := datasetName(*datasetID, *source, *input)
	ticks, err := loadTicks(ctx, *source, id, *input, *tz, *rows, *seed, set, logger)
	if err != nil {
		logger.Error("load ticks", "error", err)
		os.Exit(1)
	}
	logger.Info("ticks loaded", "dataset_id", id, "rows", len(ticks))

	p := pipeline.New().
		WithLogger(logger).
		WithParallel(*parallel || cfg.Engine.Parallel).
		WithXLSX(*xlsx || cfg.Output.XLSX)

	opts := orchestrator.Options{
		Pipeline:  p,
		DatasetID: id,
		Grid:      grid,
		Logger:    logger,
	}
	if *persist {
		if set.Runs == nil {
			logger.Error("--persist needs storage.postgres_dsn or storage.use_memory")
			os.Exit(2)
		}
		opts.RunStore = set.Runs
		opts.AlertEventStore = set.Alerts
		opts.FeatureRowStore = set.FeatureRows
	}

	start := time.Now()
	result, err := orchestrator.New(opts).Run(ctx, domain.NewTickTable(ticks))
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
	for _, e := range result.Errors {
		logger.Warn("parameter set skipped", "error", e)
	}
	if len(result.Runs) == 0 {
		logger.Error("no parameter set completed")
		os.Exit(1)
	}

	written, err := export(p, result, cfg.Output.Dir, id)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	logger.Info("analysis complete",
		"runs", result.RunsCreated,
		"rolling_computed", result.RollingComputed,
		"rolling_reused", result.RollingReused,
		"duration", time.Since(start))
	fmt.Println("Generated:")
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}
}

func overrideInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func overrideFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func loadGrid(path string, defaults domain.Params) (orchestrator.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.Grid{}, err
	}
	var g orchestrator.Grid
	if err := yaml.Unmarshal(data, &g); err != nil {
		return orchestrator.Grid{}, fmt.Errorf("parse grid %s: %w", path, err)
	}
	return g.WithDefaults(defaults), nil
}

func datasetName(id, source, input string) string {
	if id != "" {
		return id
	}
	if source == "csv" && input != "" {
		return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	return source
}

func loadTicks(ctx context.Context, source, datasetID, input, tz string, rows int, seed int64, set *stores.Set, logger *slog.Logger) ([]domain.Tick, error) {
	var (
		ticks []domain.Tick
		err   error
	)
	switch source {
	case "csv":
		if input == "" {
			return nil, errors.New("--input is required for csv")
		}
		loc, lerr := time.LoadLocation(tz)
		if lerr != nil {
			return nil, fmt.Errorf("load time zone %q: %w", tz, lerr)
		}
		ticks, err = ingestion.NewCSVSource(input).WithLocation(loc).Fetch(ctx)
	case "store":
		if set == nil || set.Ticks == nil {
			return nil, errors.New("--source=store needs storage.clickhouse_dsn")
		}
		ticks, err = set.Ticks.GetByDataset(ctx, datasetID)
	case "synthetic":
		cfg := synthetic.DefaultConfig()
		cfg.Rows = rows
		cfg.Seed = seed
		ticks = synthetic.Generate(cfg)
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
	if err != nil {
		return nil, err
	}

	ingestion.SortTicks(ticks)
	ticks, dropped := ingestion.DedupeTicks(ticks)
	if dropped > 0 {
		logger.Warn("duplicate timestamps dropped, last row kept", "dropped", dropped)
	}
	return ticks, nil
}

// export writes a single run to dir, or each run of a sweep to its own
// subdirectory plus the sweep comparison.
func export(p *pipeline.Pipeline, result *orchestrator.RunResult, dir, datasetID string) ([]string, error) {
	if len(result.Runs) == 1 {
		run := result.Runs[0]
		return p.Export(run.Result, dir, pipeline.ExportMeta{DatasetID: datasetID, RunID: run.RunID})
	}

	var written []string
	for _, run := range result.Runs {
		files, err := p.Export(run.Result, filepath.Join(dir, run.RunID), pipeline.ExportMeta{DatasetID: datasetID, RunID: run.RunID})
		if err != nil {
			return written, err
		}
		written = append(written, files...)
	}
	files, err := p.ExportSweep(result.SweepRows(), dir, pipeline.ExportMeta{DatasetID: datasetID})
	return append(written, files...), err
}
