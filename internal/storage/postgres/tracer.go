package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"microstructure-lab/internal/observability"
)

const database = "postgres"

type queryStartKey struct{}

type queryStart struct {
	at        time.Time
	operation string
}

// queryTracer implements pgx.QueryTracer by recording query metrics.
type queryTracer struct {
	metrics *observability.Metrics
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{
		at:        time.Now(),
		operation: observability.SQLOperation(data.SQL),
	})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	t.metrics.RecordDBQuery(database, start.operation, time.Since(start.at), data.Err)
}
