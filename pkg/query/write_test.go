package query_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querykit/pkg/dialect"
	"querykit/pkg/query"
)

func TestInsert(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		dialect string
		replace bool
		build   func(b *query.Builder) *query.Builder
		want    string
	}{
		{
			name: "single row keeps set order", dialect: "mysql",
			build: func(b *query.Builder) *query.Builder {
				return b.Table("users").Set("name", "ann").Set("age", 30).Set("name", "bob").Set("created_at", at)
			},
			want: "INSERT INTO `users` (`name`, `age`, `created_at`) VALUES ('bob', 30, '2024-03-01 12:30:00')",
		},
		{
			name: "set map sorts keys", dialect: "pgsql",
			build: func(b *query.Builder) *query.Builder {
				return b.Table("users").SetMap(map[string]any{"z": nil, "a": true, "m": dialect.Raw("now()")})
			},
			want: `INSERT INTO "users" ("a", "m", "z") VALUES (TRUE, now(), NULL)`,
		},
		{
			name: "batch", dialect: "sqlite",
			build: func(b *query.Builder) *query.Builder {
				return b.Table("t").SetAsBatch([]map[string]any{{"id": 1, "name": "a"}, {"name": "b", "id": 2}})
			},
			want: `INSERT INTO "t" ("id", "name") VALUES (1, 'a'), (2, 'b')`,
		},
		{
			name: "oracle batch", dialect: "oci",
			build: func(b *query.Builder) *query.Builder {
				return b.Table("t").SetAsBatch([]map[string]any{{"id": 1, "name": "a"}}).SetAsBatch([]map[string]any{{"id": 2, "name": "b"}})
			},
			want: `INSERT ALL INTO "t" ("id", "name") VALUES (1, 'a') INTO "t" ("id", "name") VALUES (2, 'b') SELECT 1 FROM DUAL`,
		},
		{
			name: "mysql replace", dialect: "mysql", replace: true,
			build: func(b *query.Builder) *query.Builder { return b.Table("t").Set("id", 1) },
			want:  "REPLACE INTO `t` (`id`) VALUES (1)",
		},
		{
			name: "sqlite replace", dialect: "sqlite", replace: true,
			build: func(b *query.Builder) *query.Builder { return b.Table("t").Set("id", 1) },
			want:  `INSERT OR REPLACE INTO "t" ("id") VALUES (1)`,
		},
		{
			name: "postgres upsert", dialect: "pgsql", replace: true,
			build: func(b *query.Builder) *query.Builder {
				return b.Table("t").Set("id", 1).Set("name", "x").OnConflict("id")
			},
			want: `INSERT INTO "t" ("id", "name") VALUES (1, 'x') ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name"`,
		},
		{
			name: "postgres upsert of keys only", dialect: "pgsql", replace: true,
			build: func(b *query.Builder) *query.Builder { return b.Table("t").Set("id", 1).OnConflict("id") },
			want:  `INSERT INTO "t" ("id") VALUES (1) ON CONFLICT ("id") DO NOTHING`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sql, args, err := tt.build(newBuilder(t, tt.dialect)).InsertSQL(tt.replace)
			require.NoError(t, err)
			assert.Nil(t, args)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestInsert_Parameterized(t *testing.T) {
	t.Parallel()

	sql, args, err := newBuilder(t, "sqlsrv", query.Parameterized()).
		Table("t").
		SetAsBatch([]map[string]any{{"a": 1, "b": "x"}, {"a": 2, "b": dialect.Raw("DEFAULT")}}).
		InsertSQL(false)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO [t] ([a], [b]) VALUES (@p1, @p2), (@p3, DEFAULT)", sql)
	assert.Equal(t, []any{1, "x", 2}, args)
}

func TestInsert_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := newBuilder(t, "mysql").Set("a", 1).InsertSQL(false)
	assert.ErrorIs(t, err, query.ErrNoTable)

	_, _, err = newBuilder(t, "mysql").Table("t").InsertSQL(false)
	assert.ErrorIs(t, err, dialect.ErrPrecondition)

	_, _, err = newBuilder(t, "sqlsrv").Table("t").Set("a", 1).InsertSQL(true)
	var ue *dialect.UnsupportedError
	require.True(t, errors.As(err, &ue), "got %v", err)
	assert.Equal(t, dialect.OpReplace, ue.Operation)

	_, _, err = newBuilder(t, "oci").Table("t").Set("a", 1).InsertSQL(true)
	assert.ErrorIs(t, err, dialect.ErrUnsupported)

	_, _, err = newBuilder(t, "pgsql").Table("t").Set("a", 1).InsertSQL(true)
	assert.ErrorIs(t, err, dialect.ErrPrecondition, "postgres upsert needs conflict keys")

	_, _, err = newBuilder(t, "mysql").Table("t").
		SetAsBatch([]map[string]any{{"a": 1}, {"b": 2}}).InsertSQL(false)
	assert.ErrorIs(t, err, dialect.ErrInvalidSpec)

	_, _, err = newBuilder(t, "mysql").Table("t").
		SetAsBatch([]map[string]any{{"a": 1}}).SetAsBatch([]map[string]any{{"a": 1, "b": 2}}).InsertSQL(false)
	assert.ErrorIs(t, err, dialect.ErrInvalidSpec)

	_, _, err = newBuilder(t, "mysql").Table("t").Set("", 1).InsertSQL(false)
	assert.ErrorIs(t, err, dialect.ErrInvalidSpec)

	b := newBuilder(t, "mysql").Table("t").Set("c", 3).SetAsBatch([]map[string]any{{"a": 1}, {"a": 2}})
	_, _, err = b.InsertSQL(false)
	assert.ErrorIs(t, err, dialect.ErrInvalidSpec)
	assert.ErrorIs(t, b.Err(), dialect.ErrInvalidSpec, "the error stays on the builder")
}

func TestUpdateDeleteTruncate(t *testing.T) {
	t.Parallel()

	sql, _, err := newBuilder(t, "mysql").Table("users").
		Set("name", "x").Set("visits", dialect.Raw("visits + 1")).
		Where("id", 1).Limit(5).
		UpdateSQL()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `name` = 'x', `visits` = visits + 1 WHERE `id` = 1", sql)

	sql, args, err := newBuilder(t, "pgsql", query.Parameterized()).Table("users").
		Set("name", "x").WhereBrackets().Where("id", 1).OrWhere("id", 2).WhereBracketsEnd().
		UpdateSQL()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1 WHERE ("id" = $2 OR "id" = $3)`, sql)
	assert.Equal(t, []any{"x", 1, 2}, args)

	_, _, err = newBuilder(t, "mysql").Table("users").Where("id", 1).UpdateSQL()
	assert.ErrorIs(t, err, dialect.ErrPrecondition)

	sql, _, err = newBuilder(t, "mysql").Table("users").WhereIn("id", []int64{1, 2, 3}).DeleteSQL()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE `id` IN (1, 2, 3)", sql)

	sql, _, err = newBuilder(t, "oci").Table("users").DeleteSQL()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users"`, sql)

	_, _, err = newBuilder(t, "mysql").DeleteSQL()
	assert.ErrorIs(t, err, query.ErrNoTable)

	sql, _, err = newBuilder(t, "sqlite").Table("users").TruncateSQL()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users"`, sql)

	sql, _, err = newBuilder(t, "sqlsrv").Table("users").TruncateSQL()
	require.NoError(t, err)
	assert.Equal(t, "TRUNCATE TABLE [users]", sql)
}

// recorder is an in-memory Executor.
type recorder struct {
	sql  []string
	args [][]any
	rows []map[string]any
	err  error
}

func (r *recorder) record(sql string, args []any) {
	r.sql = append(r.sql, sql)
	r.args = append(r.args, args)
}

func (r *recorder) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	r.record(sql, args)
	return int64(len(r.sql)), r.err
}

func (r *recorder) Rows(_ context.Context, sql string, args ...any) ([]map[string]any, error) {
	r.record(sql, args)
	return r.rows, r.err
}

func (r *recorder) Row(_ context.Context, sql string, args ...any) (map[string]any, error) {
	r.record(sql, args)
	if len(r.rows) == 0 {
		return nil, r.err
	}
	return r.rows[0], r.err
}

func (r *recorder) Value(_ context.Context, sql string, args ...any) (any, error) {
	r.record(sql, args)
	if len(r.rows) == 0 {
		return nil, r.err
	}
	for _, v := range r.rows[0] {
		return v, r.err
	}
	return nil, r.err
}

func TestExecution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var logs bytes.Buffer
	rec := &recorder{rows: []map[string]any{{"n": int64(3)}}}
	b := newBuilder(t, "pgsql",
		query.WithExecutor(rec),
		query.Parameterized(),
		query.WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)

	rows, err := b.Select("n").From("t").Where("a", 1).Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.rows, rows)
	assert.Equal(t, `SELECT "n" FROM "t" WHERE "a" = $1`, rec.sql[0])
	assert.Equal(t, []any{1}, rec.args[0])

	row, err := b.Row(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row["n"])

	v, err := b.RowColumn(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = b.Flush().Table("t").Set("a", 1).Insert(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("a") VALUES ($1)`, rec.sql[len(rec.sql)-1])

	_, err = b.Flush().Table("t").Set("a", 2).Where("id", 9).Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "a" = $1 WHERE "id" = $2`, rec.sql[len(rec.sql)-1])

	_, err = b.Flush().Table("t").Where("id", 9).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE "id" = $1`, rec.sql[len(rec.sql)-1])

	_, err = b.Flush().Table("t").Truncate(ctx)
	require.NoError(t, err)
	assert.Equal(t, `TRUNCATE TABLE "t"`, rec.sql[len(rec.sql)-1])

	_, err = b.Execute(ctx, "UPDATE t SET a = ? WHERE b = ?", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2", rec.sql[len(rec.sql)-1])

	_, err = b.Execute(ctx, "VACUUM")
	require.NoError(t, err)
	assert.Equal(t, "VACUUM", rec.sql[len(rec.sql)-1])

	assert.Contains(t, logs.String(), "op=insert")
	assert.Contains(t, logs.String(), "dialect=pgsql")

	rec.err = errors.New("connection reset")
	_, err = b.Flush().Table("t").Set("a", 1).Insert(ctx, false)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "query: insert:"), err.Error())
	assert.ErrorIs(t, err, rec.err)
}

func TestExecution_NoExecutor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newBuilder(t, "mysql").From("t")

	_, err := b.Rows(ctx)
	assert.ErrorIs(t, err, query.ErrNoExecutor)
	_, err = b.Row(ctx)
	assert.ErrorIs(t, err, query.ErrNoExecutor)
	_, err = b.RowColumn(ctx)
	assert.ErrorIs(t, err, query.ErrNoExecutor)
	_, err = b.Delete(ctx)
	assert.ErrorIs(t, err, query.ErrNoExecutor)
	_, err = b.Execute(ctx, "SELECT 1")
	assert.ErrorIs(t, err, query.ErrNoExecutor)
}
