// Package monitoring exposes Prometheus metrics for the pipelines and
// summarizes the synchronization audit trail.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/urbix/urbix-etl/internal/model"
)

// Record outcomes used as the "outcome" label.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeFailed   = "failed"
)

// Metrics holds the Prometheus collectors for the pipelines. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	RowsScored  prometheus.Counter
	RowsDropped prometheus.Counter

	SyncRecords  *prometheus.CounterVec   // labels: source, outcome={inserted,updated,failed}
	SyncBatches  *prometheus.CounterVec   // labels: source, result={committed,rolled_back}
	SyncRuns     *prometheus.CounterVec   // labels: source, status
	SyncDuration *prometheus.HistogramVec // labels: source
}

// NewMetrics creates the pipeline metrics and registers them with reg. A nil
// reg leaves them unregistered, which tests use to avoid collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "urbix",
			Name:      "spreadsheet_rows_scored_total",
			Help:      "Spreadsheet rows coerced and scored.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "urbix",
			Name:      "spreadsheet_rows_dropped_total",
			Help:      "Spreadsheet rows dropped as malformed or unscorable.",
		}),
		SyncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urbix",
			Name:      "sync_records_total",
			Help:      "Records handled by synchronization runs by outcome.",
		}, []string{"source", "outcome"}),
		SyncBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urbix",
			Name:      "sync_batches_total",
			Help:      "Transaction batches by result.",
		}, []string{"source", "result"}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urbix",
			Name:      "sync_runs_total",
			Help:      "Completed synchronization runs by status.",
		}, []string{"source", "status"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "urbix",
			Name:      "sync_run_duration_seconds",
			Help:      "Wall time of synchronization runs.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"source"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RowsScored,
			m.RowsDropped,
			m.SyncRecords,
			m.SyncBatches,
			m.SyncRuns,
			m.SyncDuration,
		)
	}
	return m
}

// ObserveExtraction counts the rows of one spreadsheet extraction.
func (m *Metrics) ObserveExtraction(scored, dropped int) {
	if m == nil {
		return
	}
	m.RowsScored.Add(float64(scored))
	m.RowsDropped.Add(float64(dropped))
}

// ObserveRecords adds n records with the given outcome.
func (m *Metrics) ObserveRecords(source, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SyncRecords.WithLabelValues(source, outcome).Add(float64(n))
}

// ObserveBatch counts a committed or rolled-back transaction.
func (m *Metrics) ObserveBatch(source string, committed bool) {
	if m == nil {
		return
	}
	result := "committed"
	if !committed {
		result = "rolled_back"
	}
	m.SyncBatches.WithLabelValues(source, result).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(run *model.SyncRun) {
	if m == nil || run == nil {
		return
	}
	m.SyncRuns.WithLabelValues(run.Source, string(run.Status)).Inc()
	m.SyncDuration.WithLabelValues(run.Source).Observe(run.Elapsed.Seconds())
}
