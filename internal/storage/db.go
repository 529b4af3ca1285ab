package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"querykit/pkg/dialect"
)

// DB implements Repository over a database/sql driver through sqlx. Backends
// embed it and add driver-specific opening and validation.
type DB struct {
	db *sqlx.DB
	d  *dialect.Dialect
}

// NewDB wraps an open handle. The handle is owned by the returned DB.
func NewDB(d *dialect.Dialect, db *sqlx.DB) *DB {
	return &DB{db: db, d: d}
}

// Dialect returns the dialect SQL must be rendered for.
func (x *DB) Dialect() *dialect.Dialect { return x.d }

// Handle exposes the underlying sqlx handle.
func (x *DB) Handle() *sqlx.DB { return x.db }

// Close closes the underlying handle.
func (x *DB) Close() {
	if x.db != nil {
		_ = x.db.Close()
	}
}

// Exec runs a statement and returns the affected row count. Drivers that
// cannot report one yield zero.
func (x *DB) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	if strings.TrimSpace(q) == "" {
		return 0, fmt.Errorf("%s: exec: empty statement", x.d.Name)
	}
	res, err := x.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: exec: %w", x.d.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Rows returns every row keyed by column name.
func (x *DB) Rows(ctx context.Context, q string, args ...any) ([]map[string]any, error) {
	rows, err := x.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", x.d.Name, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", x.d.Name, err)
		}
		for k, v := range m {
			m[k] = normalize(v)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", x.d.Name, err)
	}
	return out, nil
}

// Row returns the first row, or nil when the result is empty.
func (x *DB) Row(ctx context.Context, q string, args ...any) (map[string]any, error) {
	rows, err := x.Rows(ctx, q, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Value returns the first column of the first row, or nil when the result is
// empty.
func (x *DB) Value(ctx context.Context, q string, args ...any) (any, error) {
	vals, err := x.db.QueryRowxContext(ctx, q, args...).SliceScan()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", x.d.Name, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return normalize(vals[0]), nil
}

// normalize turns driver byte slices into strings so callers see text
// columns the same way on every backend.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
