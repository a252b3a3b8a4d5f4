package hw

import (
	"context"
	"time"
)

// Timer delivers periodic compare-match events. Like the hardware it
// stands in for, it never loses an event: wake-ups that arrive late
// deliver every period that has elapsed since the last one.
type Timer struct {
	period time.Duration
	wake   time.Duration
}

// NewTimer creates a timer firing hz times per second.
func NewTimer(hz int) *Timer {
	p := time.Second / time.Duration(hz)
	return &Timer{period: p, wake: p}
}

// Period returns the interval between events.
func (t *Timer) Period() time.Duration {
	return t.period
}

// SetWake sets how often Run wakes to deliver due events. It never wakes
// more often than once per period.
func (t *Timer) SetWake(d time.Duration) {
	if d < t.period {
		d = t.period
	}
	t.wake = d
}

// Run calls isr once per elapsed period until ctx is cancelled. The count
// is taken from monotonic time, so ticks dropped by the runtime ticker are
// made up on the next wake-up. A backlog of more than one second (the
// process was stopped) is discarded, since the watchdog owns that case.
func (t *Timer) Run(ctx context.Context, isr func()) {
	ticker := time.NewTicker(t.wake)
	defer ticker.Stop()

	maxBacklog := int64(time.Second / t.period)
	start := time.Now()
	var delivered int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due := int64(time.Since(start)/t.period) - delivered
			if due > maxBacklog {
				delivered += due - maxBacklog
				due = maxBacklog
			}
			for ; due > 0; due-- {
				isr()
				delivered++
			}
		}
	}
}
