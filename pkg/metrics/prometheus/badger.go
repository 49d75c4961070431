package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/torrentstore/diskcore/pkg/metrics"
	"github.com/torrentstore/diskcore/pkg/piecemgr"
)

func init() {
	metrics.RegisterPieceStoreMetricsConstructor(newPieceStoreMetrics)
}

// PieceStoreMetrics instruments the piece manager's badger-backed resume
// store (completed-piece bitmaps and partial-hash checkpoints).
type PieceStoreMetrics struct {
	reads  *prometheus.CounterVec
	writes *prometheus.CounterVec
	errors *prometheus.CounterVec
	gcRuns prometheus.Counter
}

// newPieceStoreMetrics builds a Prometheus-backed piecemgr.StoreMetrics.
// Only called via the pkg/metrics facade once IsEnabled() is confirmed true.
func newPieceStoreMetrics() piecemgr.StoreMetrics {
	reg := metrics.GetRegistry()

	return &PieceStoreMetrics{
		reads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskcore_piecestore_reads_total",
				Help: "Total number of resume-store reads by record kind.",
			},
			[]string{"kind"}, // "bitmap", "checkpoint"
		),
		writes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskcore_piecestore_writes_total",
				Help: "Total number of resume-store writes by record kind.",
			},
			[]string{"kind"},
		),
		errors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskcore_piecestore_errors_total",
				Help: "Total number of resume-store operation errors by op.",
			},
			[]string{"op"},
		),
		gcRuns: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "diskcore_piecestore_value_log_gc_runs_total",
				Help: "Total number of badger value-log GC cycles run.",
			},
		),
	}
}

// RecordRead records a resume-store read of the given record kind.
func (m *PieceStoreMetrics) RecordRead(kind string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(kind).Inc()
}

// RecordWrite records a resume-store write of the given record kind.
func (m *PieceStoreMetrics) RecordWrite(kind string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(kind).Inc()
}

// RecordError records a failed resume-store operation.
func (m *PieceStoreMetrics) RecordError(op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(op).Inc()
}

// RecordValueLogGC records one completed badger value-log GC cycle.
func (m *PieceStoreMetrics) RecordValueLogGC() {
	if m == nil {
		return
	}
	m.gcRuns.Inc()
}
