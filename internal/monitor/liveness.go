package monitor

import (
	"sync"
	"time"
)

// TickTracker records the last tick time per feed key. Updates are
// monotonic: a timestamp earlier than the recorded one never rewinds
// the entry, so out-of-order feed delivery cannot mark a live contract
// stale.
type TickTracker struct {
	mu         sync.RWMutex
	last       map[string]time.Time
	staleAfter time.Duration
}

// NewTickTracker creates a tracker with the given staleness window.
func NewTickTracker(staleAfter time.Duration) *TickTracker {
	return &TickTracker{
		last:       make(map[string]time.Time),
		staleAfter: staleAfter,
	}
}

// Record notes a tick for key at the given time. Older timestamps are
// ignored.
func (t *TickTracker) Record(key string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[key]; ok && !at.After(prev) {
		return
	}
	t.last[key] = at
}

// LastTick returns the recorded tick time for key, if any.
func (t *TickTracker) LastTick(key string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.last[key]
	return at, ok
}

// IsLive reports whether key has ticked within the staleness window as
// of now. A key that has never ticked is not live.
func (t *TickTracker) IsLive(key string, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Live(t.last[key], now, t.staleAfter)
}

// Live is the staleness rule: a tick at 'at' is live at 'now' when it
// is within the window. The zero time means never ticked.
func Live(at, now time.Time, staleAfter time.Duration) bool {
	return !at.IsZero() && now.Sub(at) < staleAfter
}

// Snapshot copies the tick map for an evaluation pass.
func (t *TickTracker) Snapshot() map[string]time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]time.Time, len(t.last))
	for k, v := range t.last {
		out[k] = v
	}
	return out
}
