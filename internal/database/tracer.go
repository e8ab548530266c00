package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
}

// queryTracer logs failed queries and queries slower than slow.
type queryTracer struct {
	log  *zerolog.Logger
	slow time.Duration
}

func (t *queryTracer) TraceQueryStart(
	ctx context.Context,
	conn *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, start: time.Now()})
}

func (t *queryTracer) TraceQueryEnd(
	ctx context.Context,
	conn *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := time.Since(qs.start)

	switch {
	case data.Err != nil:
		t.log.Warn().Err(data.Err).Str("sql", compactSQL(qs.sql)).Dur("elapsed", elapsed).Msg("query failed")
	case elapsed >= t.slow:
		t.log.Debug().Str("sql", compactSQL(qs.sql)).Dur("elapsed", elapsed).Msg("slow query")
	}
}

// compactSQL collapses whitespace so statements fit on one log line.
func compactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
