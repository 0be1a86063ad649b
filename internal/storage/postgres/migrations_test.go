package postgres

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructure-lab/internal/storage"
	"microstructure-lab/internal/storage/migrations"
)

func TestRunPostgresMigrations_RerunIsNoop(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	files, err := fs.Glob(migrations.PostgresFS, "postgres/*.sql")
	require.NoError(t, err)

	var recorded int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&recorded))
	assert.Equal(t, len(files), recorded)

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, applied, "second run must not reapply")
}

func TestRunPostgresMigrations_MissingTable(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `DROP TABLE ingest_progress`)
	require.NoError(t, err)

	// the version is still recorded, so nothing recreates the table
	_, err = migrations.RunPostgresMigrations(ctx, pool)
	assert.ErrorIs(t, err, storage.ErrSchemaIncomplete)
	assert.ErrorContains(t, err, "ingest_progress")
}
