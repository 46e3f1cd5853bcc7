package executor

import (
	"context"
	"time"

	"github.com/alanyoungcy/jitoarb/internal/clock"
)

// Outcome classifies a finished cycle for pacing.
type Outcome int

const (
	// OutcomeNormal waits one interval: no opportunity, no route, or a
	// submission that reached any final answer.
	OutcomeNormal Outcome = iota
	// OutcomeError waits the error backoff.
	OutcomeError
)

func (o Outcome) String() string {
	if o == OutcomeError {
		return "error"
	}
	return "normal"
}

// Scheduler decides how long the loop idles between cycles.
type Scheduler struct {
	Interval   time.Duration
	Multiplier int
	Clock      clock.Clock
}

// NewScheduler creates a Scheduler. Non-positive values fall back to a one
// second interval and a multiplier of five.
func NewScheduler(interval time.Duration, multiplier int, clk clock.Clock) Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if multiplier <= 0 {
		multiplier = 5
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return Scheduler{Interval: interval, Multiplier: multiplier, Clock: clk}
}

// Delay returns the idle time after a cycle with outcome o.
func (s Scheduler) Delay(o Outcome) time.Duration {
	if o == OutcomeError {
		return s.Interval * time.Duration(s.Multiplier)
	}
	return s.Interval
}

// Wait blocks for d or until ctx is done or stop is closed. It returns false
// when the wait was cut short.
func (s Scheduler) Wait(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-s.Clock.After(d):
		return true
	}
}
