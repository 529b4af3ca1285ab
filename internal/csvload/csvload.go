// Package csvload streams a CSV file into pooled rows for storage.LoadBatchesRows.
//
// The first record is the header and names the target columns. Every later
// record becomes a storage.PooledRow aligned to those columns; the backing
// slices come from a sync.Pool and go back to it when the loader frees them.
package csvload

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"querykit/internal/storage"
)

const utf8BOM = "\uFEFF"

// Options configures the reader. The zero value reads comma-separated input
// and never produces NULL.
type Options struct {
	Comma rune

	// Null is the field text loaded as SQL NULL. Empty means never.
	Null string

	// TrimSpace trims leading and trailing white space from every field.
	TrimSpace bool

	LazyQuotes bool
}

// Reader streams one CSV input.
type Reader struct {
	cr      *csv.Reader
	opt     Options
	columns []string
	pool    sync.Pool
	line    int
}

// NewReader reads the header of src. Header cells are trimmed, a UTF-8 BOM on
// the first cell is dropped, and empty or duplicate names are rejected.
func NewReader(src io.Reader, opt Options) (*Reader, error) {
	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	r := &Reader{cr: cr, opt: opt}
	hdr, err := r.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csvload: missing header")
		}
		return nil, fmt.Errorf("csvload: read header: %w", err)
	}
	seen := make(map[string]bool, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		switch {
		case h == "":
			return nil, fmt.Errorf("csvload: header column %d is empty", i+1)
		case seen[h]:
			return nil, fmt.Errorf("csvload: duplicate header column %q", h)
		}
		seen[h] = true
		r.columns = append(r.columns, h)
	}

	n := len(r.columns)
	r.pool.New = func() any { return make([]any, n) }
	return r, nil
}

// Columns returns the header names in file order.
func (r *Reader) Columns() []string { return append([]string(nil), r.columns...) }

func (r *Reader) read() ([]string, error) {
	r.line++
	return r.cr.Read()
}

func (r *Reader) get() *storage.PooledRow {
	v := r.pool.Get().([]any)
	row := &storage.PooledRow{V: v}
	row.FreeFunc = func() {
		clear(v)
		r.pool.Put(v)
	}
	return row
}

// Stream sends one row per record to out until EOF and returns nil, or
// returns ctx.Err() once ctx is done. It does not close out. Records with a
// different width than the header are passed to onErr with their line
// number and skipped; a nil onErr drops them silently.
func (r *Reader) Stream(ctx context.Context, out chan<- *storage.PooledRow, onErr func(line int, err error)) error {
	n := len(r.columns)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(r.line, fmt.Errorf("csv read: %w", err))
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return fmt.Errorf("csvload: %w", err)
		}
		if len(rec) != n {
			if onErr != nil {
				onErr(r.line, fmt.Errorf("got %d fields, want %d", len(rec), n))
			}
			continue
		}

		row := r.get()
		for i, v := range rec {
			if r.opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if r.opt.Null != "" && v == r.opt.Null {
				row.V[i] = nil
				continue
			}
			row.V[i] = v
		}

		select {
		case out <- row:
		case <-ctx.Done():
			row.Free()
			return ctx.Err()
		}
	}
}

// Load streams every record of r into copyFn in batches of batchSize. Reader
// and loader run concurrently; the first error from either cancels the other.
// Skipped records are logged at warn level.
func (r *Reader) Load(ctx context.Context, log *slog.Logger, batchSize int, copyFn storage.CopyFn) (int64, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan *storage.PooledRow, batchSize)
	readErr := make(chan error, 1)
	go func() {
		defer close(rows)
		err := r.Stream(ctx, rows, func(line int, err error) {
			log.WarnContext(ctx, "csvload: skipped record", "line", line, "err", err)
		})
		if err != nil {
			cancel()
		}
		readErr <- err
	}()

	total, err := storage.LoadBatchesRows(ctx, log, r.columns, rows, batchSize, copyFn)
	if err != nil {
		cancel()
		for row := range rows {
			row.Free()
		}
	}
	rerr := <-readErr
	switch {
	case rerr != nil && !errors.Is(rerr, context.Canceled):
		return total, rerr
	case err != nil:
		return total, err
	}
	return total, rerr
}
