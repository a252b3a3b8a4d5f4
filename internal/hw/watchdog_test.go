package hw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestSoftWatchdogFiresWithoutKicks(t *testing.T) {
	clk := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewSoftWatchdog(500*time.Millisecond, clk.now)

	clk.t = clk.t.Add(400 * time.Millisecond)
	assert.False(t, w.Check())

	w.Kick()
	clk.t = clk.t.Add(400 * time.Millisecond)
	assert.False(t, w.Check(), "kick should restart the timeout")

	clk.t = clk.t.Add(200 * time.Millisecond)
	assert.True(t, w.Check())

	select {
	case <-w.Expired():
	default:
		t.Fatal("expired channel should be closed")
	}

	// Stays fired even if kicked afterwards.
	w.Kick()
	assert.True(t, w.Check())
	assert.Equal(t, uint64(2), w.Kicks())
}

func TestTimerPeriod(t *testing.T) {
	assert.Equal(t, 125*time.Microsecond, NewTimer(8000).Period())
	assert.Equal(t, 2500*time.Microsecond, NewTimer(400).Period())
}

// A timer that only wakes every 20 ms still delivers every period.
func TestTimerDeliversLateTicks(t *testing.T) {
	tm := NewTimer(8000)
	tm.SetWake(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	var n int
	start := time.Now()
	tm.Run(ctx, func() { n++ })
	elapsed := time.Since(start)

	want := float64(elapsed / tm.Period())
	assert.LessOrEqual(t, float64(n), want)
	assert.InDelta(t, want, float64(n), 400, "delivered %d in %v", n, elapsed)
}

func TestTimerWakeNotBelowPeriod(t *testing.T) {
	tm := NewTimer(400)
	tm.SetWake(time.Microsecond)
	assert.Equal(t, tm.Period(), tm.wake)
}

func TestErrorLogCounts(t *testing.T) {
	var e errorLog
	e.note("fan", nil)
	assert.Zero(t, e.total("fan"))
	e.note("fan", assert.AnError)
	e.note("fan", assert.AnError)
	assert.Equal(t, uint64(2), e.total("fan"))
}
