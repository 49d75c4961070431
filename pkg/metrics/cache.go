package metrics

import "github.com/torrentstore/diskcore/pkg/cache"

// NewCacheMetrics returns a Prometheus-backed cache.Metrics, or nil if
// metrics collection was never enabled via InitRegistry. A nil Metrics is
// a valid cache.Config.Metrics value: every call site checks for nil
// before recording.
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is registered by pkg/metrics/prometheus/cache.go's
// init, avoiding an import cycle between this package and the concrete
// Prometheus collector package.
var newPrometheusCacheMetrics func() cache.Metrics

// RegisterCacheMetricsConstructor installs the Prometheus cache metrics
// constructor. Called from pkg/metrics/prometheus's package init.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}
