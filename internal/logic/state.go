package logic

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/sweeney/irsensor/internal/accum"
)

// State is the device-lifetime memory shared by the scheduler and the
// foreground controllers. Accumulators and Tick are written only by the
// scheduler; the foreground reads them inside an irq critical section.
type State struct {
	Params Params
	Cal    Calibration

	Near *accum.Rolling[uint16]
	Far  *accum.Rolling[uint16]
	Off  *accum.Rolling[uint16]
	Fan  *accum.Pair[uint16]

	// Tick counts scheduler steps and wraps at 16 bits.
	Tick uint16

	// Running gates accumulator writes during start-up settling.
	Running atomic.Bool

	// Foreground only.
	Hold         int
	LastFanCheck uint16
}

// NewState allocates zeroed IR accumulators and a fan pair pre-loaded from
// the calibration.
func NewState(p Params, cal Calibration) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	st := &State{Params: p, Cal: cal}
	var err error
	if st.Near, err = accum.New[uint16](p.CyclesAveraged); err != nil {
		return nil, fmt.Errorf("near accumulator: %w", err)
	}
	if st.Far, err = accum.New[uint16](p.CyclesAveraged); err != nil {
		return nil, fmt.Errorf("far accumulator: %w", err)
	}
	if st.Off, err = accum.New[uint16](p.CyclesAveraged); err != nil {
		return nil, fmt.Errorf("off accumulator: %w", err)
	}
	if st.Fan, err = accum.NewPair[uint16](p.FanSamplesAveraged); err != nil {
		return nil, fmt.Errorf("fan accumulators: %w", err)
	}
	st.Fan.Fill(cal.ReadingInit, cal.OffsetInit)
	return st, nil
}

// Sums is a consistent snapshot of the IR accumulators.
type Sums struct {
	Near uint16
	Far  uint16
	Off  uint16
}

// FanSums is a consistent snapshot of the fan accumulators.
type FanSums struct {
	Active uint16
	Offset uint16
}
