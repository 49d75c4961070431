// Package metrics wires Prometheus collectors for the disk I/O core:
// cache hit/miss/eviction/flush counters, job-queue depth, latency
// histograms and error counters, piece-verification counters, and
// resume-store counters. Collection is
// entirely optional — nothing in pkg/cache, pkg/diskqueue, or
// pkg/piecemgr requires metrics to be enabled.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and installs reg as the target
// registry. Passing nil creates a fresh prometheus.NewRegistry(). Safe to
// call once at process startup, before any collector constructor below
// runs.
func InitRegistry(reg *prometheus.Registry) *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	registry = reg
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active registry, initializing a default one on
// first use if InitRegistry was never called explicitly.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	reg := registry
	mu.RUnlock()
	if reg != nil {
		return reg
	}
	return InitRegistry(nil)
}
