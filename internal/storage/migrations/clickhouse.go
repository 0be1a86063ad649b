package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"microstructure-lab/internal/storage"
	chstore "microstructure-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN database if needed, applies the
// embedded files not yet recorded in schema_migrations and returns a
// connection to that database together with the versions applied.
//
// ClickHouse has no transactions: a file is recorded only after all of its
// statements succeed, so a failed file is retried in full on the next run.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, []string, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	done, err := migrateClickhouse(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, done, err
	}
	return conn, done, nil
}

func migrateClickhouse(ctx context.Context, conn *chstore.Conn) ([]string, error) {
	if err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+versionTable+` (
		version    String,
		name       String,
		applied_at DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = MergeTree()
	ORDER BY version`); err != nil {
		return nil, fmt.Errorf("create %s: %w", versionTable, err)
	}

	applied, err := chStrings(ctx, conn, `SELECT version FROM `+versionTable)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	all, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range pending(all, applied) {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			return done, fmt.Errorf("validate migration %s: %w", m.Name, err)
		}
		// the driver runs one statement per Exec
		for _, stmt := range splitStatements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return done, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		if err := recordClickhouse(ctx, conn, m); err != nil {
			return done, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		done = append(done, m.Version)
	}

	tables, err := chStrings(ctx, conn, `SELECT name FROM system.tables WHERE database = currentDatabase()`)
	if err != nil {
		return done, fmt.Errorf("list tables: %w", err)
	}
	if missing := missingTables(ClickhouseTables, tables); len(missing) > 0 {
		return done, fmt.Errorf("%w: clickhouse is missing %s", storage.ErrSchemaIncomplete, strings.Join(missing, ", "))
	}
	return done, nil
}

func recordClickhouse(ctx context.Context, conn *chstore.Conn, m Migration) error {
	batch, err := conn.PrepareBatch(ctx, `INSERT INTO `+versionTable+` (version, name)`)
	if err != nil {
		return err
	}
	if err := batch.Append(m.Version, m.Name); err != nil {
		return err
	}
	return batch.Send()
}

func chStrings(ctx context.Context, conn *chstore.Conn, query string) ([]string, error) {
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// splitStatements drops -- comment lines and splits on semicolons. Migration
// files must not put semicolons inside string literals or block comments;
// validateNoSemicolonInStrings enforces the first rule.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects a ';' inside a single-quoted literal.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++ // escaped ''
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon inside string literal at byte %d", i)
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
