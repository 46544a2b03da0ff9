package clock

import "time"

// Clock provides time operations that can be mocked for testing.
// Tolerance widening and launch timeouts are both derived from it, so tests
// can drive time-dependent behavior deterministically.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the system clock. time.Time carries a
// monotonic reading, so durations computed via Since are immune to
// wall-clock adjustments.
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t
func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}
