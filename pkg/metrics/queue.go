package metrics

import "github.com/torrentstore/diskcore/pkg/diskqueue"

// NewQueueMetrics returns a Prometheus-backed diskqueue.Metrics, or nil if
// metrics collection was never enabled via InitRegistry.
func NewQueueMetrics() diskqueue.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusQueueMetrics()
}

var newPrometheusQueueMetrics func() diskqueue.Metrics

// RegisterQueueMetricsConstructor installs the Prometheus queue metrics
// constructor. Called from pkg/metrics/prometheus's package init.
func RegisterQueueMetricsConstructor(constructor func() diskqueue.Metrics) {
	newPrometheusQueueMetrics = constructor
}
