package logic

import (
	"context"
	"time"

	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/irq"
)

// Classify decides the output level from a snapshot. Saturation is judged
// on the raw sums; the other levels on sums with the ambient baseline
// removed. Simple mode never reports Approaching, which tells the two
// sensor types apart on the controller.
func Classify(s Sums, differential bool, p Params) Level {
	if s.Near >= p.SaturatedSum() || s.Far >= p.SaturatedSum() {
		return LevelSaturated
	}
	near := subFloor(s.Near, s.Off)
	far := subFloor(s.Far, s.Off)

	if !differential {
		if near >= p.SimpleNearSum() {
			return LevelOn
		}
		return LevelOff
	}

	switch {
	case near > far && far >= p.FarSum():
		return LevelOn
	case far >= p.FarSum() && uint32(near)*6 >= uint32(far)*5:
		return LevelApproaching
	}
	return LevelOff
}

func subFloor(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return 0
}

// StepResult reports one foreground iteration.
type StepResult struct {
	Tick         uint16
	Sums         Sums
	Differential bool
	Level        Level
	LevelChanged bool
	Fan          *FanDecision // nil when no fan check was due
}

// SensorController is the foreground loop: it samples the IR sums, drives
// the output lines and paces the fan checks by tick count.
type SensorController struct {
	st    *State
	board hw.Board
	fan   *FanController
	irq   *irq.Controller
	level Level

	// Preempt, if set, runs between field reads inside the snapshot
	// critical section.
	Preempt func()
}

// NewSensorController creates the foreground controller.
func NewSensorController(st *State, board hw.Board, fan *FanController, ic *irq.Controller) *SensorController {
	return &SensorController{st: st, board: board, fan: fan, irq: ic, level: LevelOff}
}

func (c *SensorController) preempt() {
	if c.Preempt != nil {
		c.Preempt()
	}
}

// Snapshot reads the three IR sums with the interrupt masked.
func (c *SensorController) Snapshot() Sums {
	var s Sums
	c.irq.Critical(func() {
		s.Near = c.st.Near.Sum()
		c.preempt()
		s.Far = c.st.Far.Sum()
		c.preempt()
		s.Off = c.st.Off.Sum()
	})
	return s
}

// Ticks reads the tick counter with the interrupt masked.
func (c *SensorController) Ticks() uint16 {
	var t uint16
	c.irq.Critical(func() { t = c.st.Tick })
	return t
}

// Level returns the last level written to the output.
func (c *SensorController) Level() Level {
	return c.level
}

// Step runs one iteration of the foreground loop.
func (c *SensorController) Step() StepResult {
	s := c.Snapshot()
	diff := c.board.DifferentialMode()
	lvl := Classify(s, diff, c.st.Params)
	c.board.SetOutputLines(lvl.Lines())

	res := StepResult{Sums: s, Differential: diff, Level: lvl, LevelChanged: lvl != c.level}
	c.level = lvl

	// Unsigned subtraction handles counter wrap. The check time advances by
	// exactly one interval so overruns do not drift the fan cadence.
	res.Tick = c.Ticks()
	interval := c.st.Params.FanIntervalTicks()
	if res.Tick-c.st.LastFanCheck >= interval {
		d := c.fan.Check()
		res.Fan = &d
		c.st.LastFanCheck += interval
	}
	return res
}

// Run steps the loop each time pace fires until ctx is cancelled. On the
// device the loop never ends; cancellation stands for power-off.
func (c *SensorController) Run(ctx context.Context, pace <-chan time.Time, observe func(StepResult)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-pace:
			res := c.Step()
			if observe != nil {
				observe(res)
			}
		}
	}
}
