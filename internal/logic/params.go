package logic

import (
	"errors"
	"fmt"

	"github.com/sweeney/irsensor/internal/accum"
)

// MaxSample is the largest 10-bit conversion result.
const MaxSample = 1023

// ErrInvalidParams is wrapped by every Params.Validate failure.
var ErrInvalidParams = errors.New("invalid params")

// Params holds the timing and threshold configuration. Thresholds are per
// sample; the sum thresholds are derived by multiplying by the window size.
type Params struct {
	InterruptHz        int // scheduler ticks per second
	CyclesAveraged     int // IR accumulator window
	FanSampleHz        int // fan checks per second
	FanSamplesAveraged int // fan accumulator window
	FanOnSeconds       int // minimum fan run time

	FarThreshold        uint16 // minimum far reading for a working sensor
	SimpleNearThreshold uint16 // near reading that sets the output in simple mode
	SaturatedThreshold  uint16 // reading at which the sensor saturates

	SettleTicks uint16 // ticks discarded after the scheduler starts
}

// DefaultParams returns the production firmware configuration.
func DefaultParams() Params {
	return Params{
		InterruptHz:         8000,
		CyclesAveraged:      8,
		FanSampleHz:         16,
		FanSamplesAveraged:  16,
		FanOnSeconds:        2,
		FarThreshold:        10,
		SimpleNearThreshold: 30,
		SaturatedThreshold:  870,
		SettleTicks:         4,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// Validate checks that windows are powers of two and that every sum fits
// in 16 bits, so accumulators cannot overflow.
func (p Params) Validate() error {
	if p.InterruptHz <= 0 {
		return invalid("interrupt frequency %d", p.InterruptHz)
	}
	if p.FanSampleHz <= 0 || p.InterruptHz%p.FanSampleHz != 0 {
		return invalid("fan sample frequency %d does not divide %d", p.FanSampleHz, p.InterruptHz)
	}
	if iv := p.InterruptHz / p.FanSampleHz; iv > 0x7fff {
		return invalid("fan interval %d ticks exceeds tick counter range", iv)
	}
	for name, n := range map[string]int{"cycles averaged": p.CyclesAveraged, "fan samples averaged": p.FanSamplesAveraged} {
		if !accum.IsPowerOfTwo(n) {
			return invalid("%s %d is not a power of two", name, n)
		}
		if n*MaxSample > 0xffff {
			return invalid("%s %d overflows a 16-bit sum", name, n)
		}
	}
	if p.FanOnSeconds <= 0 || p.FanOnSeconds*p.FanSampleHz > 256 {
		return invalid("fan on time %ds", p.FanOnSeconds)
	}
	if p.SaturatedThreshold > MaxSample || p.SimpleNearThreshold > MaxSample || p.FarThreshold > MaxSample {
		return invalid("threshold above %d", MaxSample)
	}
	return nil
}

// FanIntervalTicks is the number of ticks between fan checks.
func (p Params) FanIntervalTicks() uint16 {
	return uint16(p.InterruptHz / p.FanSampleHz)
}

// FanHoldPeriods is the hold count loaded when the fan switches on.
func (p Params) FanHoldPeriods() int {
	return p.FanOnSeconds*p.FanSampleHz - 1
}

// FarSum is the far threshold scaled to the accumulator window.
func (p Params) FarSum() uint16 { return p.FarThreshold * uint16(p.CyclesAveraged) }

// SimpleNearSum is the simple-mode threshold scaled to the accumulator window.
func (p Params) SimpleNearSum() uint16 { return p.SimpleNearThreshold * uint16(p.CyclesAveraged) }

// SaturatedSum is the saturation threshold scaled to the accumulator window.
func (p Params) SaturatedSum() uint16 { return p.SaturatedThreshold * uint16(p.CyclesAveraged) }
