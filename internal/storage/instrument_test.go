package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querykit/internal/metrics"
)

type metricCall struct {
	name   string
	value  float64
	labels metrics.Labels
}

type recordingBackend struct {
	mu       sync.Mutex
	counters []metricCall
	hists    []metricCall
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, metricCall{name, delta, labels})
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hists = append(r.hists, metricCall{name, value, labels})
}

func (r *recordingBackend) Flush() error { return nil }

func (r *recordingBackend) sum(name string, match metrics.Labels) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0.0
next:
	for _, c := range r.counters {
		if c.name != name {
			continue
		}
		for k, v := range match {
			if c.labels[k] != v {
				continue next
			}
		}
		total += c.value
	}
	return total
}

// installBackend swaps the global metrics backend for the test. Tests using
// it must not call t.Parallel.
func installBackend(t *testing.T) *recordingBackend {
	t.Helper()
	rb := &recordingBackend{}
	prev := metrics.SetBackend(rb)
	t.Cleanup(func() { metrics.SetBackend(prev) })
	return rb
}

func TestStatementKind(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"SELECT * FROM t":                       "select",
		"  \n\tinsert into t values (1)":        "insert",
		"(SELECT 1) UNION (SELECT 2)":           "select",
		"IF OBJECT_ID(N'dbo.t', N'U') IS NULL":  "if",
		"PRAGMA foreign_keys = ON":              "pragma",
		"TRUNCATE;":                             "truncate",
		"":                                      "unknown",
		"   ":                                   "unknown",
		"WITH x AS (SELECT 1) SELECT * FROM x":  "with",
		"CREATE TABLE IF NOT EXISTS \"t\" (id)": "create",
	}
	for q, want := range tests {
		assert.Equal(t, want, StatementKind(q), "%q", q)
	}
}

func TestInstrument_RecordsStatementsAndRows(t *testing.T) {
	rb := installBackend(t)

	repo := newFakeRepo(t, "pgsql")
	repo.execN = 3
	repo.rows = []map[string]any{{"id": 1}, {"id": 2}}

	var buf bytes.Buffer
	ir := Instrument(repo, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	assert.Same(t, repo.Dialect(), ir.Dialect())

	ctx := context.Background()
	_, err := ir.Exec(ctx, "UPDATE t SET a = $1", 1)
	require.NoError(t, err)
	rows, err := ir.Rows(ctx, "SELECT id FROM t")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	row, err := ir.Row(ctx, "SELECT id FROM t LIMIT 1")
	require.NoError(t, err)
	assert.NotNil(t, row)
	_, err = ir.Value(ctx, "SELECT count(*) FROM t")
	require.NoError(t, err)

	assert.Equal(t, 1.0, rb.sum(metrics.StatementsTotal, metrics.Labels{"dialect": "pgsql", "kind": "update", "status": "success"}))
	assert.Equal(t, 3.0, rb.sum(metrics.StatementsTotal, metrics.Labels{"kind": "select"}))
	assert.Equal(t, 3.0, rb.sum(metrics.RowsTotal, metrics.Labels{"kind": "affected"}))
	assert.Equal(t, 3.0, rb.sum(metrics.RowsTotal, metrics.Labels{"kind": "returned"}))
	assert.Len(t, rb.hists, 4)

	assert.Contains(t, buf.String(), `msg="storage: statement"`)
	assert.Contains(t, buf.String(), "kind=update")

	// The wrapped repository received the statements unchanged.
	assert.Equal(t, "UPDATE t SET a = $1", repo.stmts[0])
	assert.Equal(t, []any{1}, repo.args[0])
}

func TestInstrument_FailureIsLoggedAndCounted(t *testing.T) {
	rb := installBackend(t)

	repo := newFakeRepo(t, "mysql")
	repo.err = errors.New("lock wait timeout")

	var buf bytes.Buffer
	ir := Instrument(repo, slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := ir.Exec(context.Background(), "DELETE FROM t")
	assert.ErrorIs(t, err, repo.err)

	assert.Equal(t, 1.0, rb.sum(metrics.StatementsTotal, metrics.Labels{"dialect": "mysql", "kind": "delete", "status": "failure"}))
	assert.Zero(t, rb.sum(metrics.RowsTotal, nil))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "lock wait timeout")
}

func TestCopyFnFor_RecordsLoadMetrics(t *testing.T) {
	rb := installBackend(t)

	native := &copierRepo{fakeRepo: newFakeRepo(t, "sqlsrv")}
	_, err := CopyFnFor(native, "t", nil)(context.Background(), []string{"id"}, [][]any{{1}, {2}, {3}})
	require.NoError(t, err)

	plain := newFakeRepo(t, "sqlite")
	_, err = CopyFnFor(plain, "t", nil)(context.Background(), []string{"id"}, [][]any{{1}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, rb.sum(metrics.StatementsTotal, metrics.Labels{"dialect": "sqlsrv", "kind": "copy"}))
	assert.Equal(t, 3.0, rb.sum(metrics.RowsTotal, metrics.Labels{"dialect": "sqlsrv", "kind": "loaded"}))
	assert.Equal(t, 1.0, rb.sum(metrics.RowsTotal, metrics.Labels{"dialect": "sqlite", "kind": "loaded"}))
	assert.Equal(t, 2.0, rb.sum(metrics.BatchesTotal, nil))
}

func BenchmarkInstrumentExec(b *testing.B) {
	repo := newFakeRepo(b, "pgsql")
	ir := Instrument(repo, discardLogger())
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		repo.stmts, repo.args = repo.stmts[:0], repo.args[:0]
		_, _ = ir.Exec(ctx, "UPDATE t SET a = 1")
	}
}
