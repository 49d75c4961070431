package diskqueue

import (
	"sync"
	"time"
)

// perfLimiter rate-limits disk-performance-warning alerts to at most one
// per storage per interval (SPEC_FULL §6.3 supplemented feature), so a
// run of slow jobs against the same storage doesn't flood the alert
// dispatcher.
type perfLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func newPerfLimiter(interval time.Duration) *perfLimiter {
	return &perfLimiter{interval: interval, last: make(map[string]time.Time)}
}

// allow reports whether a warning for storageID may be posted now, and if
// so records the time so the next call within interval returns false.
func (l *perfLimiter) allow(storageID string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.last[storageID]; ok && now.Sub(prev) < l.interval {
		return false
	}
	l.last[storageID] = now
	return true
}
