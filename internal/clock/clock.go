// Package clock provides an abstraction for time operations to improve testability.
// The scheduler takes its poll timer from a Clock so tests can fire it by hand
// instead of waiting for real time to pass.
package clock

import "time"

// Clock is an interface for time operations.
// This allows code to be tested with mock clocks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After waits for d on the system clock.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}
