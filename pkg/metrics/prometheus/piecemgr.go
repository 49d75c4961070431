package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/torrentstore/diskcore/pkg/metrics"
	"github.com/torrentstore/diskcore/pkg/piecemgr"
)

func init() {
	metrics.RegisterPieceMetricsConstructor(newPieceMetrics)
}

// pieceMetrics is the Prometheus implementation of piecemgr.PieceMetrics.
type pieceMetrics struct {
	verified *prometheus.CounterVec
}

func newPieceMetrics() piecemgr.PieceMetrics {
	reg := metrics.GetRegistry()
	return &pieceMetrics{
		verified: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "diskcore_pieces_verified_total",
			Help: "Total number of pieces hashed during a full recheck, by verification result.",
		}, []string{"result"}),
	}
}

func (m *pieceMetrics) ObservePieceVerified(ok bool) {
	if ok {
		m.verified.WithLabelValues("ok").Inc()
		return
	}
	m.verified.WithLabelValues("bad").Inc()
}
