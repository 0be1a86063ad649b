// Command server runs the analysis HTTP API over the configured tick store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"microstructure-lab/internal/api"
	"microstructure-lab/internal/config"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/pipeline"
	"microstructure-lab/internal/storage/stores"
	"microstructure-lab/internal/synthetic"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file (ignored when missing)")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	seedRows := flag.Int("seed-synthetic", 0, "With --use-memory, preload a synthetic dataset of this many rows")
	migrate := flag.Bool("migrate", false, "Apply migrations on startup")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{File: *configPath, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *useMemory {
		cfg.Storage = config.StorageConfig{UseMemory: true}
	}
	logger := config.NewLogger(cfg.Logging, os.Stderr).With("cmd", "server")

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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := observability.NewMetrics("", reg)

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

	if *seedRows > 0 && cfg.Storage.UseMemory {
		sc := synthetic.DefaultConfig()
		sc.Rows = *seedRows
		if err := set.Ticks.InsertBulk(ctx, "synthetic", synthetic.Generate(sc)); err != nil {
			logger.Error("seed synthetic dataset", "error", err)
			os.Exit(1)
		}
		logger.Info("synthetic dataset loaded", "dataset_id", "synthetic", "rows", sc.Rows)
	}

	p := pipeline.New().
		WithLogger(logger).
		WithMetrics(m).
		WithParallel(cfg.Engine.Parallel)

	srv := api.New(api.Options{
		TickStore:       set.Ticks,
		RunStore:        set.Runs,
		AlertEventStore: set.Alerts,
		Pipeline:        p,
		Defaults:        cfg.Engine.Params(),
		CacheEntries:    cfg.Server.CacheEntries,
		RateLimitRPS:    cfg.Server.RateLimitRPS,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		RequestTimeout:  cfg.Server.WriteTimeout,
		Logger:          logger,
		Metrics:         m,
		Gatherer:        reg,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
