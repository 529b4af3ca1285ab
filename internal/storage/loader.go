package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"querykit/internal/metrics"
	"querykit/pkg/query"
)

// CopyFn inserts rows aligned to columns and returns the number of rows the
// backend reported as inserted. It must cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// InsertCopyFn returns a CopyFn that renders one parameterized multi-row
// INSERT per batch through the query builder, so every dialect gets its own
// batch shape (INSERT ALL on Oracle, VALUES lists elsewhere).
func InsertCopyFn(repo Repository, table string, log *slog.Logger) CopyFn {
	return func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		batch := make([]map[string]any, 0, len(rows))
		for i, r := range rows {
			if len(r) != len(columns) {
				return 0, fmt.Errorf("storage: copy: row %d has %d values for %d columns", i, len(r), len(columns))
			}
			m := make(map[string]any, len(columns))
			for j, c := range columns {
				m[c] = r[j]
			}
			batch = append(batch, m)
		}
		qb := query.New(repo.Dialect(), query.WithExecutor(repo), query.WithLogger(log), query.Parameterized())
		n, err := qb.Table(table).SetAsBatch(batch).Insert(ctx, false)
		if err != nil {
			return 0, err
		}
		// Some drivers do not report affected rows for multi-row inserts.
		if n <= 0 {
			n = int64(len(rows))
		}
		name := string(repo.Dialect().Name)
		metrics.RecordBatches(name, 1)
		metrics.RecordRows(name, "loaded", n)
		return n, nil
	}
}

// Copier is implemented by backends with a native bulk-load path.
type Copier interface {
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// CopyFnFor returns the native bulk path of repo when it implements Copier
// and InsertCopyFn otherwise.
func CopyFnFor(repo Repository, table string, log *slog.Logger) CopyFn {
	base := repo
	if u, ok := repo.(interface{ Unwrap() Repository }); ok {
		base = u.Unwrap()
	}
	c, ok := base.(Copier)
	if !ok {
		return InsertCopyFn(repo, table, log)
	}
	name := string(repo.Dialect().Name)
	return func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		start := time.Now()
		n, err := c.CopyFrom(ctx, table, columns, rows)
		metrics.RecordStatement(name, "copy", err, time.Since(start))
		if err != nil {
			return n, err
		}
		metrics.RecordBatches(name, 1)
		metrics.RecordRows(name, "loaded", n)
		return n, nil
	}
}

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the total reported by
// copyFn and the first error. Progress is logged at info level after every
// successful flush; on cancellation it returns (total, ctx.Err()).
func LoadBatches(
	ctx context.Context,
	log *slog.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	p := newProgress(log)
	batch := make([][]any, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		batch = batch[:0]
		return p.record(ctx, n, err)
	}

	for {
		// A canceled load never starts another batch.
		if err := ctx.Err(); err != nil {
			return p.total, err
		}
		select {
		case <-ctx.Done():
			return p.total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				pending := len(batch)
				if err := flush(); err != nil {
					return p.total, err
				}
				p.log.InfoContext(ctx, "loader: input closed", "final_flush", pending, "total_inserted", p.total)
				return p.total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return p.total, err
				}
			}
		}
	}
}

// progress keeps running totals across flushes and emits one log line per
// successful flush.
type progress struct {
	log       *slog.Logger
	total     int64
	batches   int64
	start     time.Time
	lastFlush time.Time
	lastTotal int64
}

func newProgress(log *slog.Logger) *progress {
	if log == nil {
		log = slog.Default()
	}
	now := time.Now()
	return &progress{log: log, start: now, lastFlush: now}
}

func (p *progress) record(ctx context.Context, n int64, err error) error {
	p.total += n
	if err != nil {
		p.log.ErrorContext(ctx, "loader: copy failed", "after", n, "total", p.total, "err", err)
		return err
	}
	p.batches++

	now := time.Now()
	since := now.Sub(p.lastFlush)
	rps := float64(0)
	if since > 0 {
		rps = float64(p.total-p.lastTotal) / since.Seconds()
	}
	p.log.InfoContext(ctx, "loader: batch",
		"batch", p.batches,
		"rps", int64(rps),
		"inserted", n,
		"total_inserted", p.total,
		"elapsed", now.Sub(p.start).Truncate(time.Millisecond),
		"since_last", since.Truncate(time.Millisecond),
	)
	p.lastFlush = now
	p.lastTotal = p.total
	return nil
}
