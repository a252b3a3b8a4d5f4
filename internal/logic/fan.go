package logic

import (
	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/irq"
)

// FanReason explains a fan decision.
type FanReason string

const (
	FanReasonNone         FanReason = ""
	FanReasonDisconnected FanReason = "DISCONNECTED" // reading at or above reference, or too close to it
	FanReasonHot          FanReason = "HOT"
	FanReasonCooled       FanReason = "COOLED"
	FanReasonHolding      FanReason = "HOLDING" // cool enough, minimum run time not yet served
)

// FanDecision is the outcome of one fan check.
type FanDecision struct {
	Sums    FanSums
	Diff    uint16 // offset minus active, 0 when active is not below offset
	On      bool
	Changed bool
	Hold    int
	Reason  FanReason
}

// DecideFan applies the thermostat with minimum run time. The hold count
// only decrements on checks where the fan would otherwise switch off.
func DecideFan(on bool, hold int, s FanSums, cal Calibration, holdPeriods int) (bool, int, FanReason) {
	if on {
		if s.Active < s.Offset {
			diff := s.Offset - s.Active
			if diff >= cal.Connected && diff <= cal.Off {
				if hold == 0 {
					return false, 0, FanReasonCooled
				}
				return true, hold - 1, FanReasonHolding
			}
		}
		return true, hold, FanReasonNone
	}

	if s.Active >= s.Offset {
		return true, holdPeriods, FanReasonDisconnected
	}
	diff := s.Offset - s.Active
	if diff < cal.Connected {
		return true, holdPeriods, FanReasonDisconnected
	}
	if diff >= cal.On {
		return true, holdPeriods, FanReasonHot
	}
	return false, hold, FanReasonNone
}

// FanController switches the fan from the thermistor accumulators. It is
// called from the foreground loop at the fan sample rate, and its call is
// the loop's only watchdog kick.
type FanController struct {
	st    *State
	board hw.Board
	wd    hw.Watchdog
	irq   *irq.Controller
}

// NewFanController creates a fan controller over st.
func NewFanController(st *State, board hw.Board, wd hw.Watchdog, ic *irq.Controller) *FanController {
	return &FanController{st: st, board: board, wd: wd, irq: ic}
}

// Snapshot reads both fan sums with the interrupt masked.
func (f *FanController) Snapshot() FanSums {
	var s FanSums
	f.irq.Critical(func() {
		s.Active, s.Offset = f.st.Fan.Sums()
	})
	return s
}

// Check runs one fan decision and kicks the watchdog.
func (f *FanController) Check() FanDecision {
	s := f.Snapshot()
	was := f.board.Fan()
	on, hold, reason := DecideFan(was, f.st.Hold, s, f.st.Cal, f.st.Params.FanHoldPeriods())
	f.st.Hold = hold
	if on != was {
		f.board.SetFan(on)
	}
	f.wd.Kick()
	d := FanDecision{Sums: s, On: on, Changed: on != was, Hold: hold, Reason: reason}
	if s.Active < s.Offset {
		d.Diff = s.Offset - s.Active
	}
	return d
}
