// Package metrics records operational metrics for statement execution and
// bulk loads behind a small, backend-agnostic interface.
//
// A process installs one Backend with SetBackend; until then every call goes
// to a no-op backend, so instrumentation is always safe to call. Concrete
// systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by all backends.
const (
	StatementsTotal   = "querykit_statements_total"
	StatementDuration = "querykit_statement_duration_seconds"
	RowsTotal         = "querykit_rows_total"
	BatchesTotal      = "querykit_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend and returns the one it replaced.
// Passing nil keeps the existing backend.
func SetBackend(b Backend) Backend {
	mu.Lock()
	defer mu.Unlock()
	prev := backend
	if b != nil {
		backend = b
	}
	return prev
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStatement counts one executed statement and observes its latency.
// kind is the leading SQL keyword in lower case ("select", "insert", ...).
func RecordStatement(dialect, kind string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"dialect": dialect,
		"kind":    kind,
		"status":  status,
	}
	b := current()
	b.IncCounter(StatementsTotal, 1, lbls)
	b.ObserveHistogram(StatementDuration, d.Seconds(), lbls)
}

// RecordRows adds delta to the row counter for the dialect and kind.
// Typical kinds are "affected", "returned" and "loaded".
func RecordRows(dialect, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"dialect": dialect,
		"kind":    kind,
	})
}

// RecordBatches increments the bulk-load batch counter for the dialect.
func RecordBatches(dialect string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"dialect": dialect,
	})
}
