package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/torrentstore/diskcore/pkg/diskqueue"
	"github.com/torrentstore/diskcore/pkg/metrics"
)

func init() {
	metrics.RegisterQueueMetricsConstructor(newQueueMetrics)
}

// queueMetrics is the Prometheus implementation of diskqueue.Metrics.
type queueMetrics struct {
	depth   prometheus.Gauge
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

func newQueueMetrics() diskqueue.Metrics {
	reg := metrics.GetRegistry()
	return &queueMetrics{
		depth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "diskcore_queue_depth",
			Help: "Current number of jobs waiting in the disk job queue.",
		}),
		latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diskcore_job_latency_seconds",
			Help:    "Disk job latency in seconds, by job kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		errors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "diskcore_job_errors_total",
			Help: "Total number of failed disk jobs, by job kind.",
		}, []string{"kind"}),
	}
}

func (m *queueMetrics) ObserveQueueDepth(n int) { m.depth.Set(float64(n)) }

func (m *queueMetrics) ObserveJobLatency(kind string, d time.Duration) {
	m.latency.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *queueMetrics) ObserveJobError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}
