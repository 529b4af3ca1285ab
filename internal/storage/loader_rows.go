package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// PooledRow is a row whose backing slice belongs to a pool. Free returns it
// once the row has been copied to the database.
type PooledRow struct {
	V        []any
	FreeFunc func()
}

// Free releases the row to its pool.
func (r *PooledRow) Free() {
	if r.FreeFunc != nil {
		r.FreeFunc()
	}
}

// LoadBatchesRows is LoadBatches for pooled rows. Each batch is handed to
// copyFn as a [][]any view over the pooled slices, which are freed after the
// flush returns.
func LoadBatchesRows(
	ctx context.Context,
	log *slog.Logger,
	columns []string,
	in <-chan *PooledRow,
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
	batch := make([]*PooledRow, 0, batchSize)
	slab := make([][]any, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		slab = slab[:0]
		for _, r := range batch {
			slab = append(slab, r.V)
		}
		n, err := copyFn(ctx, columns, slab)
		for _, r := range batch {
			r.Free()
		}
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
		case r, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return p.total, err
				}
				return p.total, nil
			}
			batch = append(batch, r)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return p.total, err
				}
			}
		}
	}
}
