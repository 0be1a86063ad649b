package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"microstructure-lab/internal/storage/migrations"
)

const testImage = "postgres:15-alpine"

// setupTestDB starts a throwaway Postgres, migrates it with the embedded
// migrations and registers its teardown with t.Cleanup.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, testImage,
		tcpostgres.WithDatabase("msl"),
		tcpostgres.WithUsername("msl"),
		tcpostgres.WithPassword("msl"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "start postgres")
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "connect")
	t.Cleanup(pool.Close)

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	require.NoError(t, err, "migrate")
	require.NotEmpty(t, applied)

	return pool
}

func ptr[T any](v T) *T {
	return &v
}
