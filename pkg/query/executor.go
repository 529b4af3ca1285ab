package query

import "context"

// Executor runs rendered SQL. Implementations live in internal/storage; the
// builders only render and delegate.
//
// args are already in the bind style of the dialect the SQL was rendered
// for. Rows returns one map per row keyed by column name; Row returns the
// first row (nil when there is none); Value returns the first column of the
// first row; Exec returns the number of affected rows.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Rows(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	Row(ctx context.Context, sql string, args ...any) (map[string]any, error)
	Value(ctx context.Context, sql string, args ...any) (any, error)
}
