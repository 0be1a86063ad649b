package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

var base = time.Date(2025, 5, 6, 14, 30, 0, 0, time.UTC)

func testTicks(n int) []domain.Tick {
	ticks := make([]domain.Tick, n)
	for i := range ticks {
		ticks[i] = domain.Tick{
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Bid:        100 + float64(i)*0.01,
			Ask:        100.05 + float64(i)*0.01,
			BidVol:     100,
			AskVol:     80,
			TradePrice: 100.02,
			TradeSize:  float64(i % 3),
		}
	}
	return ticks
}

func TestTickStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	ctx := context.Background()

	assert.NoError(t, store.InsertBulk(ctx, "ds1", nil))

	ticks := testTicks(5)
	require.NoError(t, store.InsertBulk(ctx, "ds1", ticks))

	got, err := store.GetByDataset(ctx, "ds1")
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := range ticks {
		assert.True(t, ticks[i].Timestamp.Equal(got[i].Timestamp), "row %d timestamp", i)
		assert.Equal(t, ticks[i].Bid, got[i].Bid)
		assert.Equal(t, ticks[i].TradeSize, got[i].TradeSize)
	}
}

func TestTickStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	ctx := context.Background()
	ticks := testTicks(3)

	require.NoError(t, store.InsertBulk(ctx, "ds1", ticks))
	assert.ErrorIs(t, store.InsertBulk(ctx, "ds1", ticks[1:2]), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.InsertBulk(ctx, "ds2", []domain.Tick{ticks[0], ticks[0]}), storage.ErrDuplicateKey)
	assert.NoError(t, store.InsertBulk(ctx, "ds2", ticks[:1]))
}

func TestTickStore_TimeRangeAndDatasets(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "b", testTicks(10)))
	require.NoError(t, store.InsertBulk(ctx, "a", testTicks(2)))

	got, err := store.GetByTimeRange(ctx, "b", base.Add(2*time.Second), base.Add(4*time.Second))
	require.NoError(t, err)
	assert.Len(t, got, 3)

	infos, err := store.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ID)
	assert.Equal(t, 10, infos[1].Rows)
	assert.True(t, infos[1].Last.Equal(base.Add(9*time.Second)))
}

func TestFeatureRowStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureRowStore(conn)
	ctx := context.Background()

	rows := []domain.FeatureRow{
		{RowIndex: 0, Tick: testTicks(1)[0], Mid: 100.025, Spread: 0.05, SpreadZ: 0, DepthMed: 180},
		{RowIndex: 1, Tick: testTicks(2)[1], Mid: 100.035, Spread: 0.05, SpreadZ: 1.5, DepthMed: 180},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", rows))
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-1", rows[:1]), storage.ErrDuplicateKey)

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[1].RowIndex)
	assert.Equal(t, 1.5, got[1].SpreadZ)
	assert.True(t, got[1].Timestamp.Equal(rows[1].Timestamp))
}
