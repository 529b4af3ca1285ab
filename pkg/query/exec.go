package query

import (
	"context"
	"fmt"
)

func (b *Builder) executor() (Executor, error) {
	if b.exec == nil {
		return nil, ErrNoExecutor
	}
	return b.exec, nil
}

func (b *Builder) trace(ctx context.Context, op, sql string, args []any) {
	b.log.DebugContext(ctx, "query", "dialect", b.d.Name, "op", op, "sql", sql, "args", len(args))
}

// Rows renders the SELECT and returns every row.
func (b *Builder) Rows(ctx context.Context) ([]map[string]any, error) {
	x, err := b.executor()
	if err != nil {
		return nil, err
	}
	sql, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	b.trace(ctx, "rows", sql, args)
	rows, err := x.Rows(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: rows: %w", err)
	}
	return rows, nil
}

// Row renders the SELECT and returns its first row, or nil when there is
// none.
func (b *Builder) Row(ctx context.Context) (map[string]any, error) {
	x, err := b.executor()
	if err != nil {
		return nil, err
	}
	sql, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	b.trace(ctx, "row", sql, args)
	row, err := x.Row(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: row: %w", err)
	}
	return row, nil
}

// RowColumn renders the SELECT and returns the first column of its first
// row.
func (b *Builder) RowColumn(ctx context.Context) (any, error) {
	x, err := b.executor()
	if err != nil {
		return nil, err
	}
	sql, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	b.trace(ctx, "value", sql, args)
	v, err := x.Value(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: value: %w", err)
	}
	return v, nil
}

// Execute runs arbitrary SQL through the executor. "?" marks are rebound to
// the dialect bind style when args are given.
func (b *Builder) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	x, err := b.executor()
	if err != nil {
		return 0, err
	}
	if len(args) > 0 {
		sql = b.d.Rebind(sql)
	}
	b.trace(ctx, "exec", sql, args)
	n, err := x.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("query: exec: %w", err)
	}
	return n, nil
}

func (b *Builder) run(ctx context.Context, op string, render func() (string, []any, error)) (int64, error) {
	x, err := b.executor()
	if err != nil {
		return 0, err
	}
	sql, args, err := render()
	if err != nil {
		return 0, err
	}
	b.trace(ctx, op, sql, args)
	n, err := x.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("query: %s: %w", op, err)
	}
	return n, nil
}

// Insert executes InsertSQL and returns the affected row count.
func (b *Builder) Insert(ctx context.Context, replace bool) (int64, error) {
	return b.run(ctx, "insert", func() (string, []any, error) { return b.InsertSQL(replace) })
}

// Update executes UpdateSQL.
func (b *Builder) Update(ctx context.Context) (int64, error) {
	return b.run(ctx, "update", b.UpdateSQL)
}

// Delete executes DeleteSQL.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	return b.run(ctx, "delete", b.DeleteSQL)
}

// Truncate executes TruncateSQL.
func (b *Builder) Truncate(ctx context.Context) (int64, error) {
	return b.run(ctx, "truncate", b.TruncateSQL)
}
