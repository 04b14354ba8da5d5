package bulkimport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	rows     *prometheus.CounterVec
	batches  *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cargamasiva_rows_total",
			Help: "Rows processed by bulk imports, by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cargamasiva_batches_total",
			Help: "Bulk import batches, by final status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cargamasiva_batch_seconds",
			Help:    "Wall time of bulk import batches.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.rows, m.batches, m.duration)
	}
	return m
}

func (m *Metrics) observeRow(kind OutcomeKind) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeBatch(result *BatchResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result.Status()).Inc()
	m.duration.Observe(elapsed.Seconds())
}
