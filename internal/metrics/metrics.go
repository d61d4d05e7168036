// Package metrics exposes Prometheus counters for merges and remote store calls.
package metrics

import (
	"time"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/merger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "libros"

// Metrics implements merger.Observer and remotestore.Observer.
type Metrics struct {
	Merges        *prometheus.CounterVec
	RowsProcessed prometheus.Counter
	RemoteOps     *prometheus.CounterVec
	MergeDuration prometheus.Histogram
	Uploads       *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Merges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Merges by final status.",
		}, []string{"status"}),
		RowsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Ledger rows written to month sheets.",
		}),
		RemoteOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_ops_total",
			Help:      "Remote store calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		MergeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_duration_seconds",
			Help:      "Wall time of a merge.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploaded exports by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
}

func (m *Metrics) ObserveMerge(status merger.Status, rows int, d time.Duration) {
	m.Merges.WithLabelValues(string(status)).Inc()
	if rows > 0 {
		m.RowsProcessed.Add(float64(rows))
	}
	m.MergeDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRemoteOp(op string, _ time.Duration, err error) {
	m.RemoteOps.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveUpload counts an uploaded export handled by endpoint.
func (m *Metrics) ObserveUpload(endpoint string, err error) {
	m.Uploads.WithLabelValues(endpoint, Outcome(err)).Inc()
}

// Outcome buckets err into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case ledgererror.IsInputError(err):
		return "invalid_input"
	case ledgererror.IsConflict(err):
		return "conflict"
	case ledgererror.IsTransient(err):
		return "transient"
	case ledgererror.IsRemote(err):
		return "remote_error"
	}
	return "error"
}
