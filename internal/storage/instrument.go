package storage

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"querykit/internal/metrics"
)

// Instrument wraps repo so that every statement is timed, counted and logged
// at debug level. Row counts are recorded as "affected" for Exec and
// "returned" for queries.
func Instrument(repo Repository, log *slog.Logger) Repository {
	if log == nil {
		log = slog.Default()
	}
	return &instrumented{Repository: repo, log: log, name: string(repo.Dialect().Name)}
}

type instrumented struct {
	Repository
	log  *slog.Logger
	name string
}

// Unwrap returns the wrapped repository.
func (r *instrumented) Unwrap() Repository { return r.Repository }

func (r *instrumented) observe(ctx context.Context, q string, start time.Time, err error) {
	kind := StatementKind(q)
	d := time.Since(start)
	metrics.RecordStatement(r.name, kind, err, d)
	if err != nil {
		r.log.ErrorContext(ctx, "storage: statement failed", "dialect", r.name, "kind", kind, "duration", d, "err", err)
	} else {
		r.log.DebugContext(ctx, "storage: statement", "dialect", r.name, "kind", kind, "duration", d)
	}
}

func (r *instrumented) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	start := time.Now()
	n, err := r.Repository.Exec(ctx, q, args...)
	r.observe(ctx, q, start, err)
	metrics.RecordRows(r.name, "affected", n)
	return n, err
}

func (r *instrumented) Rows(ctx context.Context, q string, args ...any) ([]map[string]any, error) {
	start := time.Now()
	rows, err := r.Repository.Rows(ctx, q, args...)
	r.observe(ctx, q, start, err)
	metrics.RecordRows(r.name, "returned", int64(len(rows)))
	return rows, err
}

func (r *instrumented) Row(ctx context.Context, q string, args ...any) (map[string]any, error) {
	start := time.Now()
	row, err := r.Repository.Row(ctx, q, args...)
	r.observe(ctx, q, start, err)
	if row != nil {
		metrics.RecordRows(r.name, "returned", 1)
	}
	return row, err
}

func (r *instrumented) Value(ctx context.Context, q string, args ...any) (any, error) {
	start := time.Now()
	v, err := r.Repository.Value(ctx, q, args...)
	r.observe(ctx, q, start, err)
	return v, err
}

// StatementKind returns the leading keyword of q in lower case, skipping
// leading whitespace and parentheses. SQL Server guards ("IF OBJECT_ID")
// report as "if".
func StatementKind(q string) string {
	q = strings.TrimLeft(q, " \t\r\n(")
	end := strings.IndexAny(q, " \t\r\n(;")
	if end < 0 {
		end = len(q)
	}
	if end == 0 {
		return "unknown"
	}
	return strings.ToLower(q[:end])
}
