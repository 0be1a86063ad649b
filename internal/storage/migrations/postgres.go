package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"microstructure-lab/internal/storage"
)

// PostgresDB is the part of a pgx pool the migrator uses.
type PostgresDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunPostgresMigrations applies the embedded files not yet recorded in
// schema_migrations, each in its own transaction together with its record,
// and returns the versions it applied. It fails with
// storage.ErrSchemaIncomplete if a store table is still missing afterwards.
func RunPostgresMigrations(ctx context.Context, db PostgresDB) ([]string, error) {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+versionTable+` (
		version    TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return nil, fmt.Errorf("create %s: %w", versionTable, err)
	}

	applied, err := pgStrings(ctx, db, `SELECT version FROM `+versionTable)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	all, err := load(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range pending(all, applied) {
		err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
			if strings.TrimSpace(m.SQL) != "" {
				if _, err := tx.Exec(ctx, m.SQL); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO `+versionTable+` (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return done, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		done = append(done, m.Version)
	}

	tables, err := pgStrings(ctx, db,
		`SELECT tablename::text FROM pg_catalog.pg_tables WHERE schemaname = current_schema()`)
	if err != nil {
		return done, fmt.Errorf("list tables: %w", err)
	}
	if missing := missingTables(PostgresTables, tables); len(missing) > 0 {
		return done, fmt.Errorf("%w: postgres is missing %s", storage.ErrSchemaIncomplete, strings.Join(missing, ", "))
	}
	return done, nil
}

func pgStrings(ctx context.Context, db PostgresDB, query string) ([]string, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
