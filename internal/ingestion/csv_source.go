package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"microstructure-lab/internal/domain"
)

// Timestamp layouts accepted in CSV files, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// CSVSource reads ticks from a CSV file with a header row.
// Column names are matched case-insensitively; extra columns are ignored.
type CSVSource struct {
	path     string
	location *time.Location
}

// NewCSVSource creates a source for the file at path. Timestamps without a
// zone are read in UTC.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path, location: time.UTC}
}

// WithLocation sets the zone for timestamps that carry none.
func (s *CSVSource) WithLocation(loc *time.Location) *CSVSource {
	s.location = loc
	return s
}

// Name implements TickSource.
func (s *CSVSource) Name() string { return "csv" }

// Fetch implements TickSource.
func (s *CSVSource) Fetch(ctx context.Context) ([]domain.Tick, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	return ReadTicksCSV(ctx, f, s.location)
}

// ReadTicksCSV parses ticks from r. A missing required column is a
// *domain.SchemaError. An empty quote cell (bid, ask or either volume) is a
// line-numbered error; empty trade cells read as 0, a row without a trade.
func ReadTicksCSV(ctx context.Context, r io.Reader, loc *time.Location) ([]domain.Tick, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.SchemaError{Column: domain.ColTimestamp, Reason: "file has no header row"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	cols := make([]int, len(domain.RequiredTickColumns))
	for i, name := range domain.RequiredTickColumns {
		j, ok := idx[name]
		if !ok {
			return nil, &domain.SchemaError{Column: name, Reason: "required column is missing"}
		}
		cols[i] = j
	}

	var ticks []domain.Tick
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		ts, err := parseTimestamp(record[cols[0]], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, domain.ColTimestamp, err)
		}
		var vals [6]float64
		for k := range vals {
			v, err := parseNumber(record[cols[k+1]], k >= tradeCells)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, domain.RequiredTickColumns[k+1], err)
			}
			vals[k] = v
		}

		ticks = append(ticks, domain.Tick{
			Timestamp:  ts,
			Bid:        vals[0],
			Ask:        vals[1],
			BidVol:     vals[2],
			AskVol:     vals[3],
			TradePrice: vals[4],
			TradeSize:  vals[5],
		})
	}
	return ticks, nil
}

// WriteTicksCSV writes ticks with the canonical header.
func WriteTicksCSV(w io.Writer, ticks []domain.Tick) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.RequiredTickColumns); err != nil {
		return err
	}
	for _, t := range ticks {
		rec := []string{
			t.Timestamp.UTC().Format(time.RFC3339Nano),
			formatNumber(t.Bid),
			formatNumber(t.Ask),
			formatNumber(t.BidVol),
			formatNumber(t.AskVol),
			formatNumber(t.TradePrice),
			formatNumber(t.TradeSize),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	// Unix seconds, optionally fractional.
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// tradeCells is the offset of trade_price among the numeric columns.
const tradeCells = 4

var errEmptyCell = errors.New("empty cell")

func parseNumber(s string, optional bool) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if optional {
			return 0, nil
		}
		return 0, errEmptyCell
	}
	return strconv.ParseFloat(s, 64)
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
