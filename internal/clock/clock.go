// Package clock abstracts time so pacing and polling can be driven by a fake
// clock in tests.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of time functions the loop and poller need.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// NewReal returns the wall clock.
func NewReal() Clock { return clockwork.NewRealClock() }

// Fake is a Clock whose After fires immediately and advances Now by the
// requested duration. Every requested delay is recorded. A single-goroutine
// loop test can run many cycles against it without anyone calling Advance,
// which a clockwork.FakeClock would need.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	delays []time.Duration
}

// NewFake returns a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After records d, advances the clock and returns an already-fired channel.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.delays = append(f.delays, d)
	now := f.now
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Delays returns a copy of every duration passed to After.
func (f *Fake) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.delays))
	copy(out, f.delays)
	return out
}
