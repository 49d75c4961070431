package metrics

import "github.com/torrentstore/diskcore/pkg/piecemgr"

// NewPieceStoreMetrics returns a Prometheus-backed piecemgr.StoreMetrics, or
// nil if metrics collection was never enabled via InitRegistry.
func NewPieceStoreMetrics() piecemgr.StoreMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusPieceStoreMetrics()
}

var newPrometheusPieceStoreMetrics func() piecemgr.StoreMetrics

// RegisterPieceStoreMetricsConstructor installs the Prometheus resume-store
// metrics constructor. Called from pkg/metrics/prometheus's package init.
func RegisterPieceStoreMetricsConstructor(constructor func() piecemgr.StoreMetrics) {
	newPrometheusPieceStoreMetrics = constructor
}
