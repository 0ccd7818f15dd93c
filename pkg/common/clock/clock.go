// Package clock provides the time source used by pacegate components.
//
// Elapsed time is always computed with time.Time.Sub on values returned by
// Now. For the System clock those values carry Go's monotonic reading, so
// wall-clock adjustments never shorten or stretch a pacing interval.
package clock

import "time"

// Clock provides the current time and timers. It can be mocked for testing.
type Clock interface {
	// Now returns the current time. Successive calls never go backward.
	Now() time.Time

	// NewTimer returns a timer that fires once after d.
	// A non-positive d fires immediately.
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer created by a Clock.
type Timer interface {
	// C returns the channel the fire time is delivered on.
	C() <-chan time.Time

	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// System implements Clock using the runtime's monotonic clock.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// NewTimer wraps time.NewTimer.
func (System) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) C() <-chan time.Time { return s.t.C }

func (s systemTimer) Stop() bool { return s.t.Stop() }

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
