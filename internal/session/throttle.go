package session

import (
	"sync"
	"time"
)

// Throttle is a sliding window limiter: at most limit events per interval.
type Throttle struct {
	mu       sync.Mutex
	history  []time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewThrottle(limit int, interval time.Duration) *Throttle {
	return &Throttle{
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	windowStart := now.Add(-t.interval)

	fresh := t.history[:0]
	for _, at := range t.history {
		if at.After(windowStart) {
			fresh = append(fresh, at)
		}
	}
	t.history = fresh

	if len(fresh) >= t.limit {
		return false
	}
	t.history = append(t.history, now)
	return true
}
