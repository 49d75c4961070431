package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/torrentstore/diskcore/pkg/cache"
	"github.com/torrentstore/diskcore/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(newCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	flushes   prometheus.Counter
	flushBytes prometheus.Counter
}

func newCacheMetrics() cache.Metrics {
	reg := metrics.GetRegistry()
	return &cacheMetrics{
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "diskcore_cache_hits_total",
			Help: "Total number of block cache hits.",
		}),
		misses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "diskcore_cache_misses_total",
			Help: "Total number of block cache misses.",
		}),
		evictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "diskcore_cache_evictions_total",
			Help: "Total number of blocks evicted from the cache.",
		}),
		flushes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "diskcore_cache_flushes_total",
			Help: "Total number of dirty-block flush operations.",
		}),
		flushBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "diskcore_cache_flush_bytes_total",
			Help: "Total bytes written by cache flushes.",
		}),
	}
}

func (m *cacheMetrics) ObserveHit()  { m.hits.Inc() }
func (m *cacheMetrics) ObserveMiss() { m.misses.Inc() }

func (m *cacheMetrics) ObserveEviction(n int) {
	if n > 0 {
		m.evictions.Add(float64(n))
	}
}

func (m *cacheMetrics) ObserveFlush(bytes int64) {
	m.flushes.Inc()
	if bytes > 0 {
		m.flushBytes.Add(float64(bytes))
	}
}
