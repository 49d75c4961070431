package metrics

import "github.com/torrentstore/diskcore/pkg/piecemgr"

// NewPieceMetrics returns a Prometheus-backed piecemgr.PieceMetrics, or nil
// if metrics collection was never enabled via InitRegistry.
func NewPieceMetrics() piecemgr.PieceMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusPieceMetrics()
}

var newPrometheusPieceMetrics func() piecemgr.PieceMetrics

// RegisterPieceMetricsConstructor installs the Prometheus piece-manager
// metrics constructor. Called from pkg/metrics/prometheus's package init.
func RegisterPieceMetricsConstructor(constructor func() piecemgr.PieceMetrics) {
	newPrometheusPieceMetrics = constructor
}
