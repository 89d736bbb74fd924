package sio

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs one-shot callbacks after a delay.
type Scheduler interface {
	// Schedule runs callback once delay has elapsed,
	// unless the returned function was called before that.
	Schedule(callback func(), delay time.Duration) (cancel func())
}

type clockScheduler struct {
	clock clock.Clock
}

// NewClockScheduler returns a Scheduler driven by c.
// If c is nil, the wall clock is used.
func NewClockScheduler(c clock.Clock) Scheduler {
	if c == nil {
		c = clock.New()
	}
	return &clockScheduler{clock: c}
}

func (s *clockScheduler) Schedule(callback func(), delay time.Duration) (cancel func()) {
	t := s.clock.AfterFunc(delay, callback)
	return func() { t.Stop() }
}
