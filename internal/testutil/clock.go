package testutil

import (
	"sync"
	"time"
)

// FixedClock provides a thread-safe, manually advanced wall clock for tests.
//
// Components take a `now func() time.Time` hook so tests can pin time;
// FixedClock is the standard double behind that hook. Unlike time.Now it
// only moves when the test says so, which makes TTL and probe-staleness
// assertions exact.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the current pinned time. Pass the method value as the
// component's clock, e.g. cache.Config{Now: clk.Now}.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to t, for test reuse.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
