// Package timeutil abstracts the wall clock so run timing can be tested
// with a manually stepped clock.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the subset of time functions run bookkeeping needs.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock delegates to the time package.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a manually stepped clock for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock returns a MockClock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to an absolute time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration between the mocked now and t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
