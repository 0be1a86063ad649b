// Command ingest loads ticks from a CSV file, a bounded websocket capture or
// the synthetic generator into the tick store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"microstructure-lab/internal/config"
	"microstructure-lab/internal/ingestion"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/storage/stores"
	"microstructure-lab/internal/synthetic"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file (ignored when missing)")
	datasetID := flag.String("dataset", "", "Dataset ID to ingest into (required)")
	source := flag.String("source", "csv", "Tick source: csv, ws or synthetic")
	input := flag.String("input", "", "CSV file for --source=csv")
	tz := flag.String("tz", "UTC", "Time zone of naive CSV timestamps")
	wsURL := flag.String("ws-url", "", "Websocket feed URL for --source=ws")
	wsSubscribe := flag.String("ws-subscribe", "", "Subscribe message sent after connecting")
	maxTicks := flag.Int("max-ticks", 0, "Stop a websocket capture after this many ticks (required for ws)")
	maxDuration := flag.Duration("max-duration", 0, "Stop a websocket capture after this long")
	rows := flag.Int("rows", synthetic.DefaultConfig().Rows, "Rows for --source=synthetic")
	seed := flag.Int64("seed", synthetic.DefaultConfig().Seed, "Seed for --source=synthetic")
	batchSize := flag.Int("batch-size", ingestion.DefaultBatchSize, "Ticks per insert")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	migrate := flag.Bool("migrate", false, "Apply migrations before ingesting")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{File: *configPath, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *useMemory {
		cfg.Storage = config.StorageConfig{UseMemory: true}
	}
	logger := config.NewLogger(cfg.Logging, os.Stderr).With("cmd", "ingest")

	if *datasetID == "" {
		logger.Error("--dataset is required")
		os.Exit(2)
	}

	src, err := newSource(*source, sourceFlags{
		input:       *input,
		tz:          *tz,
		wsURL:       *wsURL,
		wsSubscribe: *wsSubscribe,
		maxTicks:    *maxTicks,
		maxDuration: *maxDuration,
		rows:        *rows,
		seed:        *seed,
	}, logger)
	if err != nil {
		logger.Error("invalid source", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("", reg)
	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr, reg, logger)
	}

	set, err := stores.Open(ctx, cfg.Storage, stores.Options{Migrate: *migrate, Metrics: m, Logger: logger})
	if err != nil {
		logger.Error("open stores", "error", err)
		os.Exit(1)
	}
	defer set.Close()
	if set.Ticks == nil {
		logger.Error("no tick store configured: set storage.clickhouse_dsn or use --use-memory")
		os.Exit(2)
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:        src,
		TickStore:     set.Ticks,
		ProgressStore: set.Progress,
		Metrics:       m,
		Logger:        logger,
		BatchSize:     *batchSize,
	})

	start := time.Now()
	res, err := runner.Ingest(ctx, *datasetID)
	if res != nil {
		logger.Info("ingestion finished",
			"dataset_id", *datasetID,
			"source", src.Name(),
			"fetched", res.Fetched,
			"duplicates", res.Duplicates,
			"stale", res.Stale,
			"inserted", res.Inserted,
			"duration", time.Since(start))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
}

type sourceFlags struct {
	input       string
	tz          string
	wsURL       string
	wsSubscribe string
	maxTicks    int
	maxDuration time.Duration
	rows        int
	seed        int64
}

func newSource(kind string, f sourceFlags, logger *slog.Logger) (ingestion.TickSource, error) {
	switch kind {
	case "csv":
		if f.input == "" {
			return nil, errors.New("--input is required for csv")
		}
		loc, err := time.LoadLocation(f.tz)
		if err != nil {
			return nil, fmt.Errorf("load time zone %q: %w", f.tz, err)
		}
		return ingestion.NewCSVSource(f.input).WithLocation(loc), nil
	case "ws":
		if f.wsURL == "" {
			return nil, errors.New("--ws-url is required for ws")
		}
		wsCfg := ingestion.DefaultWSConfig()
		wsCfg.URL = f.wsURL
		wsCfg.MaxTicks = f.maxTicks
		wsCfg.MaxDuration = f.maxDuration
		if f.wsSubscribe != "" {
			wsCfg.Subscribe = []byte(f.wsSubscribe)
		}
		return ingestion.NewWSSource(wsCfg, logger), nil
	case "synthetic":
		cfg := synthetic.DefaultConfig()
		cfg.Rows = f.rows
		cfg.Seed = f.seed
		return ingestion.NewSyntheticSource(cfg), nil
	}
	return nil, fmt.Errorf("unknown source %q", kind)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server stopped", "error", err)
	}
}
