package testutil

import (
	"sync"
	"time"
)

// TestClock is a settable clock for tests.
type TestClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewTestClock creates a clock frozen at the given time.
func NewTestClock(now time.Time) *TestClock {
	return &TestClock{now: now.UTC()}
}

// Now returns the clock's current time.
func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetNow moves the clock to the given time.
func (c *TestClock) SetNow(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

// Advance moves the clock forward by d.
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
