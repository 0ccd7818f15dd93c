package testutil

import (
	"sync"
	"time"

	"github.com/vnykmshr/pacegate/pkg/common/clock"
)

// MockClock implements clock.Clock with controllable time.
// Timers created from it fire only when Advance or Set moves time past
// their deadline, so pacing tests never sleep in real time.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a new MockClock starting at the given time.
// If zero time is provided, uses current time.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTimer returns a timer that fires when the mock time reaches now+d.
func (m *MockClock) NewTimer(d time.Duration) clock.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &mockTimer{
		clock:    m,
		deadline: m.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	if d <= 0 {
		t.fired = true
		t.ch <- m.now
		return t
	}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the mock clock forward by the given duration and fires
// every timer that came due.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	m.fireLocked()
}

// Set sets the mock clock to a specific time. Moving backward is ignored.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.now) {
		m.now = t
	}
	m.fireLocked()
}

// PendingTimers returns the number of timers that have not fired or been stopped.
func (m *MockClock) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// NextDeadline returns the earliest pending timer deadline.
func (m *MockClock) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next time.Time
	for _, t := range m.timers {
		if next.IsZero() || t.deadline.Before(next) {
			next = t.deadline
		}
	}
	return next, !next.IsZero()
}

// fireLocked fires due timers. Must be called with m.mu held.
func (m *MockClock) fireLocked() {
	remaining := m.timers[:0]
	for _, t := range m.timers {
		if t.deadline.After(m.now) {
			remaining = append(remaining, t)
			continue
		}
		t.fired = true
		t.ch <- m.now
	}
	for i := len(remaining); i < len(m.timers); i++ {
		m.timers[i] = nil
	}
	m.timers = remaining
}

type mockTimer struct {
	clock    *MockClock
	deadline time.Time
	ch       chan time.Time
	fired    bool
	stopped  bool
}

func (t *mockTimer) C() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			break
		}
	}
	return true
}
