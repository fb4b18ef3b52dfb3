package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the import pipeline. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	rows            *prometheus.CounterVec
	batches         *prometheus.CounterVec
	processDuration prometheus.Histogram
	stagedRows      prometheus.Gauge
}

// NewMetrics creates the import collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echo_ingest",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Data rows seen by Process, by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echo_ingest",
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Staged batches by final state.",
		}, []string{"state"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "echo_ingest",
			Subsystem: "import",
			Name:      "process_duration_seconds",
			Help:      "Time spent parsing and categorizing one grid.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		stagedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "echo_ingest",
			Subsystem: "import",
			Name:      "staged_rows",
			Help:      "Transactions currently waiting for review.",
		}),
	}
	reg.MustRegister(m.rows, m.batches, m.processDuration, m.stagedRows)
	return m
}

// Row outcomes
const (
	outcomeStaged           = "staged"
	outcomeBlank            = "blank"
	outcomeInvalidDate      = "invalid_date"
	outcomeEmptyDescription = "empty_description"
	outcomeZeroAmount       = "zero_amount"
)

// Batch states
const (
	stateStaged    = "staged"
	stateRejected  = "rejected"
	stateFinalized = "finalized"
	stateCancelled = "cancelled"
	stateExpired   = "expired"
	stateFailed    = "failed"
)

func (m *Metrics) observeProcess(res *ProcessResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.processDuration.Observe(elapsed.Seconds())
	m.rows.WithLabelValues(outcomeStaged).Add(float64(res.Imported))
	m.rows.WithLabelValues(outcomeBlank).Add(float64(res.BlankRows))
	m.rows.WithLabelValues(outcomeInvalidDate).Add(float64(res.Skipped.InvalidDate))
	m.rows.WithLabelValues(outcomeEmptyDescription).Add(float64(res.Skipped.EmptyDescription))
	m.rows.WithLabelValues(outcomeZeroAmount).Add(float64(res.Skipped.ZeroAmount))
}

func (m *Metrics) batch(state string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(state).Inc()
}

func (m *Metrics) setStaged(n int) {
	if m == nil {
		return
	}
	m.stagedRows.Set(float64(n))
}
