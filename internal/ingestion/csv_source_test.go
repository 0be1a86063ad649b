package ingestion

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructure-lab/internal/domain"
)

var t0 = time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)

func TestReadTicksCSV_PandasFormat(t *testing.T) {
	in := "timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size\n" +
		"2025-01-02 09:30:00.250000,99.98,100.02,101,97,100.02,12.5\n" +
		"2025-01-02 09:30:01.250000,99.97,100.03,88,120,99.97,3.1\n"

	ticks, err := ReadTicksCSV(context.Background(), strings.NewReader(in), time.UTC)
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	assert.Equal(t, t0.Add(250*time.Millisecond), ticks[0].Timestamp)
	assert.Equal(t, 99.98, ticks[0].Bid)
	assert.Equal(t, 100.02, ticks[0].Ask)
	assert.Equal(t, 101.0, ticks[0].BidVol)
	assert.Equal(t, 12.5, ticks[0].TradeSize)
	assert.Equal(t, 120.0, ticks[1].AskVol)
}

func TestReadTicksCSV_ColumnOrderAndCase(t *testing.T) {
	in := "Ask,extra,TIMESTAMP,bid,bid_vol,ask_vol,trade_price,trade_size\n" +
		"100.5,x,2025-01-02T09:30:00Z,99.5,10,20,,\n"

	ticks, err := ReadTicksCSV(context.Background(), strings.NewReader(in), time.UTC)
	require.NoError(t, err)
	require.Len(t, ticks, 1)

	assert.Equal(t, t0, ticks[0].Timestamp)
	assert.Equal(t, 99.5, ticks[0].Bid)
	assert.Equal(t, 100.5, ticks[0].Ask)
	assert.Equal(t, 0.0, ticks[0].TradePrice, "empty trade cell means no trade")
	assert.Equal(t, 0.0, ticks[0].TradeSize)
}

func TestReadTicksCSV_EmptyQuoteCell(t *testing.T) {
	in := "timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size\n" +
		"2025-01-02T09:30:00Z,1,2,1,1,,\n" +
		"2025-01-02T09:30:01Z,1,2,,1,,\n"

	_, err := ReadTicksCSV(context.Background(), strings.NewReader(in), time.UTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, errEmptyCell)
	assert.Contains(t, err.Error(), "line 3: bid_vol")
}

func TestReadTicksCSV_UnixSeconds(t *testing.T) {
	in := "timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size\n" +
		"1735810200.5,1,2,1,1,1,1\n"

	ticks, err := ReadTicksCSV(context.Background(), strings.NewReader(in), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1735810200, 500_000_000).UTC(), ticks[0].Timestamp)
}

func TestReadTicksCSV_MissingColumn(t *testing.T) {
	in := "timestamp,bid,ask,bid_vol,trade_price,trade_size\n"

	_, err := ReadTicksCSV(context.Background(), strings.NewReader(in), time.UTC)
	require.Error(t, err)

	var se *domain.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.ColAskVol, se.Column)
	assert.True(t, errors.Is(err, domain.ErrSchema))
}

func TestReadTicksCSV_EmptyFile(t *testing.T) {
	_, err := ReadTicksCSV(context.Background(), strings.NewReader(""), time.UTC)
	assert.True(t, errors.Is(err, domain.ErrSchema))
}

func TestReadTicksCSV_BadValue(t *testing.T) {
	in := "timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size\n" +
		"2025-01-02T09:30:00Z,1,2,1,1,1,1\n" +
		"2025-01-02T09:30:01Z,abc,2,1,1,1,1\n"

	_, err := ReadTicksCSV(context.Background(), strings.NewReader(in), time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3: bid")
}

func TestReadTicksCSV_BadTimestamp(t *testing.T) {
	in := "timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size\n" +
		"yesterday,1,2,1,1,1,1\n"

	_, err := ReadTicksCSV(context.Background(), strings.NewReader(in), time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized timestamp")
}

func TestWriteTicksCSV_RoundTrip(t *testing.T) {
	ticks := []domain.Tick{
		{Timestamp: t0, Bid: 99.5, Ask: 100.5, BidVol: 10, AskVol: 12, TradePrice: 100.5, TradeSize: 3.25},
		{Timestamp: t0.Add(time.Second), Bid: 99.6, Ask: 100.4, BidVol: 11, AskVol: 9, TradePrice: math.NaN(), TradeSize: math.NaN()},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTicksCSV(&buf, ticks))

	got, err := ReadTicksCSV(context.Background(), &buf, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ticks[0], got[0])
	assert.Equal(t, ticks[1].Timestamp, got[1].Timestamp)
	assert.Equal(t, 0.0, got[1].TradePrice, "NaN trade cells are written empty")
	assert.Equal(t, 0.0, got[1].TradeSize)
}

func TestCSVSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	content := "timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size\n" +
		"2025-01-02 09:30:00,1,2,3,4,5,6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src := NewCSVSource(path)
	assert.Equal(t, "csv", src.Name())

	ticks, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, t0, ticks[0].Timestamp)

	_, err = NewCSVSource(filepath.Join(t.TempDir(), "missing.csv")).Fetch(context.Background())
	assert.Error(t, err)
}

func TestCSVSource_Location(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	content := "timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size\n" +
		"2025-01-02 09:30:00,1,2,3,4,5,6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	est := time.FixedZone("EST", -5*3600)
	ticks, err := NewCSVSource(path).WithLocation(est).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0.Add(5*time.Hour), ticks[0].Timestamp)
}
