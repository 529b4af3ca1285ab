package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestLoadBatches_Basic verifies rows are grouped into batches and copyFn is
// called with the expected counts. It also checks the total equals the sum of
// all successful copyFn returns.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	columns := []string{"c1", "c2"}

	in := make(chan []any, 8)
	for i := 0; i < 7; i++ {
		in <- []any{i, "x"}
	}
	close(in)

	var calls int32
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(ctx, discardLogger(), columns, in, 3, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	if total != 7 {
		t.Fatalf("total rows %d, want 7", total)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("copyFn calls %d, want 3 (3+3+1)", got)
	}
}

func TestLoadBatches_ArgValidation(t *testing.T) {
	t.Parallel()

	in := make(chan []any)
	close(in)
	noop := func(context.Context, []string, [][]any) (int64, error) { return 0, nil }

	_, err := LoadBatches(context.Background(), nil, nil, in, 0, noop)
	assert.EqualError(t, err, "batchSize must be > 0")
	_, err = LoadBatches(context.Background(), nil, nil, in, 1, nil)
	assert.EqualError(t, err, "copyFn must not be nil")
}

// TestLoadBatches_ErrorPropagation ensures the first copy error is propagated
// and processing stops after that batch.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 5)
	for i := 0; i < 5; i++ {
		in <- []any{i}
	}
	close(in)

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return int64(len(rows)), wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), discardLogger(), []string{"c"}, in, 2, copyFn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want error %v, got %v", wantErr, err)
	}
	if batches != 2 {
		t.Fatalf("copyFn calls %d, want 2", batches)
	}
	if total != 4 {
		t.Fatalf("total rows %d, want 4", total)
	}
}

// TestLoadBatches_ContextCancel checks the loader exits on context cancellation.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan []any, 1)
	in <- []any{1}

	copyFn := func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(2 * time.Second):
			return int64(len(rows)), nil
		}
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, discardLogger(), []string{"c"}, in, 2, copyFn)
		errCh <- err
	}()

	cancel()
	close(in)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected cancellation error, got nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}

func TestLoadBatches_LogsProgress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	in := make(chan []any, 3)
	for i := 0; i < 3; i++ {
		in <- []any{i}
	}
	close(in)

	_, err := LoadBatches(context.Background(), log, []string{"c"}, in, 2, func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		return int64(len(rows)), nil
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, `msg="loader: batch"`), out)
	assert.Contains(t, out, "batch=2")
	assert.Contains(t, out, "total_inserted=3")
	assert.Contains(t, out, `msg="loader: input closed"`)
}

func TestInsertCopyFn_RendersBatchInsert(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t, "sqlite")
	fn := InsertCopyFn(repo, "events", nil)

	n, err := fn(context.Background(), []string{"id", "name"}, [][]any{{1, "a"}, {2, "b"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "falls back to the batch length when the driver reports nothing")

	require.Len(t, repo.stmts, 1)
	assert.Equal(t, `INSERT INTO "events" ("id", "name") VALUES (?, ?), (?, ?)`, repo.stmts[0])
	assert.Equal(t, []any{1, "a", 2, "b"}, repo.args[0])
}

func TestInsertCopyFn_OracleInsertAll(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t, "oci")
	repo.execN = 3
	n, err := InsertCopyFn(repo, "events", nil)(context.Background(), []string{"id"}, [][]any{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.Len(t, repo.stmts, 1)
	assert.True(t, strings.HasPrefix(repo.stmts[0], `INSERT ALL INTO "events"`), repo.stmts[0])
	assert.True(t, strings.HasSuffix(repo.stmts[0], "SELECT 1 FROM DUAL"), repo.stmts[0])
	assert.NotContains(t, repo.stmts[0], "?")
	assert.Len(t, repo.args[0], 3)
}

func TestInsertCopyFn_Errors(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t, "mysql")
	_, err := InsertCopyFn(repo, "t", nil)(context.Background(), []string{"a", "b"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 has 1 values for 2 columns")
	assert.Empty(t, repo.stmts)

	repo.err = errors.New("deadlock")
	_, err = InsertCopyFn(repo, "t", nil)(context.Background(), []string{"a"}, [][]any{{1}})
	assert.ErrorIs(t, err, repo.err)
}

type copierRepo struct {
	*fakeRepo
	tables []string
}

func (c *copierRepo) CopyFrom(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	c.tables = append(c.tables, table)
	return int64(len(rows)), nil
}

func TestCopyFnFor_PrefersNativeCopier(t *testing.T) {
	t.Parallel()

	native := &copierRepo{fakeRepo: newFakeRepo(t, "pgsql")}
	n, err := CopyFnFor(native, "events", nil)(context.Background(), []string{"id"}, [][]any{{1}, {2}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, []string{"events"}, native.tables)
	assert.Empty(t, native.stmts)

	// Instrument hides CopyFrom; the native path must still be found.
	wrapped := Instrument(native, discardLogger())
	_, err = CopyFnFor(wrapped, "audit", nil)(context.Background(), []string{"id"}, [][]any{{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "audit"}, native.tables)

	plain := newFakeRepo(t, "mysql")
	_, err = CopyFnFor(plain, "events", nil)(context.Background(), []string{"id"}, [][]any{{1}})
	require.NoError(t, err)
	require.Len(t, plain.stmts, 1)
	assert.True(t, strings.HasPrefix(plain.stmts[0], "INSERT INTO `events`"), plain.stmts[0])
}
