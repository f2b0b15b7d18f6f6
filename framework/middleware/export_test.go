package middleware

import "time"

// SetClock replaces the time source of the throttle.
func (t *Throttle) SetClock(now func() time.Time) { t.now = now }

// Buckets reports how many client buckets the throttle holds.
func (t *Throttle) Buckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}
