// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Statement counters and latencies are partitioned by dialect, kind and
// status; the Pushgateway job name is the grouping key. Collected metrics are
// pushed on Flush instead of being exposed on a scrape endpoint, which suits
// short-lived CLI runs.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"querykit/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stmtCounter  *prometheus.CounterVec // querykit_statements_total
	stmtDuration *prometheus.SummaryVec // querykit_statement_duration_seconds
	rowCounter   *prometheus.CounterVec // querykit_rows_total
	batchCounter *prometheus.CounterVec // querykit_batches_total
}

// NewBackend constructs a Prometheus Pushgateway backend. An empty jobName
// defaults to "querykit".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "querykit"
	}

	reg := prometheus.NewRegistry()

	stmtCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StatementsTotal,
			Help: "Executed SQL statements, partitioned by dialect, kind and status.",
		},
		[]string{"dialect", "kind", "status"},
	)
	stmtDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StatementDuration,
			Help:       "SQL statement latency in seconds, partitioned by dialect, kind and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"dialect", "kind", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows affected, returned or loaded, partitioned by dialect and kind.",
		},
		[]string{"dialect", "kind"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Bulk-load batches flushed, partitioned by dialect.",
		},
		[]string{"dialect"},
	)

	for name, c := range map[string]prometheus.Collector{
		"statement counter": stmtCounter,
		"statement summary": stmtDuration,
		"row counter":       rowCounter,
		"batch counter":     batchCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stmtCounter:  stmtCounter,
		stmtDuration: stmtDuration,
		rowCounter:   rowCounter,
		batchCounter: batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StatementsTotal:
		if b.stmtCounter == nil {
			return
		}
		b.stmtCounter.WithLabelValues(labels["dialect"], labels["kind"], labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["dialect"], labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.WithLabelValues(labels["dialect"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StatementDuration || b.stmtDuration == nil {
		return
	}
	b.stmtDuration.WithLabelValues(labels["dialect"], labels["kind"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
