package counter

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local fixed-window counter satisfying the same
// IncrWithTTL contract as the redis client. Suitable for single-instance
// deployments and tests; horizontally scaled deployments must use a shared
// counter backend instead, or each instance enforces its own window.
type Memory struct {
	mu        sync.Mutex
	windows   map[string]*window
	now       func() time.Time
	nextSweep time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

// sweepEvery bounds how often a write pays for scanning the whole map.
const sweepEvery = time.Minute

// NewMemory creates an empty in-process counter.
func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// IncrWithTTL increments the counter for key, starting a fresh window with
// the supplied TTL when none is active or the previous one has expired.
// Expired windows for other keys are reclaimed opportunistically so idle
// callers cannot grow the map without bound.
func (m *Memory) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(ttl)}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}

func (m *Memory) sweepLocked(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
	m.nextSweep = now.Add(sweepEvery)
}
