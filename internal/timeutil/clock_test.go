package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() = %v, expected >= 1s", d)
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, time.August, 25, 6, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(90 * time.Second)
	if got := clock.Since(start); got != 90*time.Second {
		t.Errorf("Since(start) = %v, want 90s", got)
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), later)
	}
}

func TestClockInterface(t *testing.T) {
	// Both implementations satisfy the interface the tracker is wired
	// against.
	var _ Clock = RealClock{}
	var _ Clock = NewMockClock(time.Now())
}
