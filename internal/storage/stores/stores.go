// Package stores opens the storage backends selected by configuration.
package stores

import (
	"context"
	"fmt"
	"log/slog"

	"microstructure-lab/internal/config"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/storage"
	chstore "microstructure-lab/internal/storage/clickhouse"
	"microstructure-lab/internal/storage/memory"
	"microstructure-lab/internal/storage/migrations"
	pgstore "microstructure-lab/internal/storage/postgres"
)

// Set holds every store. Time-series stores come from ClickHouse, run
// stores from PostgreSQL; a store whose backend is not configured is nil.
type Set struct {
	Ticks       storage.TickStore
	FeatureRows storage.FeatureRowStore
	Runs        storage.RunStore
	Alerts      storage.AlertEventStore
	Progress    storage.IngestProgressStore

	closers []func()
}

// Close releases every connection.
func (s *Set) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Options for Open.
type Options struct {
	Migrate bool // apply pending embedded migrations before use
	Metrics *observability.Metrics
	Logger  *slog.Logger // reports applied migration versions; optional
}

func (o Options) logApplied(database string, versions []string) {
	if o.Logger == nil {
		return
	}
	if len(versions) == 0 {
		o.Logger.Debug("schema up to date", "database", database)
		return
	}
	o.Logger.Info("migrations applied", "database", database, "versions", versions)
}

// Memory returns a Set backed entirely by in-memory stores.
func Memory() *Set {
	return &Set{
		Ticks:       memory.NewTickStore(),
		FeatureRows: memory.NewFeatureRowStore(),
		Runs:        memory.NewRunStore(),
		Alerts:      memory.NewAlertEventStore(),
		Progress:    memory.NewIngestProgressStore(),
	}
}

// Open connects to the configured backends.
func Open(ctx context.Context, cfg config.StorageConfig, opts Options) (*Set, error) {
	if cfg.UseMemory {
		return Memory(), nil
	}

	set := &Set{}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMetrics(opts.Metrics))
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		set.closers = append(set.closers, pool.Close)

		if opts.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			opts.logApplied("postgres", applied)
		}

		set.Runs = pgstore.NewRunStore(pool)
		set.Alerts = pgstore.NewAlertEventStore(pool)
		set.Progress = pgstore.NewIngestProgressStore(pool)
	}

	if cfg.ClickHouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if opts.Migrate {
			var applied []string
			conn, applied, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("clickhouse migrations: %w", err)
			}
			opts.logApplied("clickhouse", applied)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("connect to clickhouse: %w", err)
			}
		}
		conn.WithMetrics(opts.Metrics)
		set.closers = append(set.closers, func() { conn.Close() })

		set.Ticks = chstore.NewTickStore(conn)
		set.FeatureRows = chstore.NewFeatureRowStore(conn)
	}

	return set, nil
}
