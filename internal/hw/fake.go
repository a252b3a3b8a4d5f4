package hw

import "errors"

// FakeBoard is a test double that records line states.
type FakeBoard struct {
	NearLED bool
	FarLED  bool
	LineA   bool
	LineB   bool
	FanOn   bool

	// Differential and OneK are the values returned by the inputs.
	Differential bool
	OneK         bool

	// VariantReads counts Variant1K calls.
	VariantReads int

	// FanSwitches counts fan transitions.
	FanSwitches int

	// Closed tracks if Close was called
	Closed bool

	// CloseError, if set, will be returned by Close()
	CloseError error
}

// NewFakeBoard creates a FakeBoard in differential mode with a 1K resistor.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{Differential: true, OneK: true}
}

func (f *FakeBoard) SetNearLED(on bool) { f.NearLED = on }
func (f *FakeBoard) SetFarLED(on bool)  { f.FarLED = on }

func (f *FakeBoard) SetOutputLines(a, b bool) {
	f.LineA = a
	f.LineB = b
}

func (f *FakeBoard) SetFan(on bool) {
	if on != f.FanOn {
		f.FanSwitches++
	}
	f.FanOn = on
}

func (f *FakeBoard) Fan() bool { return f.FanOn }

func (f *FakeBoard) DifferentialMode() bool { return f.Differential }

func (f *FakeBoard) Variant1K() bool {
	f.VariantReads++
	return f.OneK
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.Closed = true
	return f.CloseError
}

// FakeADC returns scripted conversion results and records mux changes.
type FakeADC struct {
	// Results contains scripted values. Each Result() call consumes the
	// next one; when exhausted the last value repeats.
	Results []uint16

	// Mux is the current selection.
	Mux Mux

	// Selects records every Select call in order.
	Selects []Mux

	// Waits counts WaitSampleHold calls.
	Waits int

	index int
}

// NewFakeADC creates a FakeADC with the given results.
func NewFakeADC(results ...uint16) *FakeADC {
	return &FakeADC{Results: results, Mux: MuxPhototransistor}
}

// Result returns the next scripted value, or 0 if none are configured.
func (f *FakeADC) Result() uint16 {
	if len(f.Results) == 0 {
		return 0
	}
	v := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return v
}

func (f *FakeADC) Select(m Mux) {
	f.Mux = m
	f.Selects = append(f.Selects, m)
}

func (f *FakeADC) WaitSampleHold() { f.Waits++ }

// Reset rewinds the scripted results and clears recorded calls.
func (f *FakeADC) Reset() {
	f.index = 0
	f.Selects = nil
	f.Waits = 0
}

// FakeWatchdog counts kicks.
type FakeWatchdog struct {
	Kicks int
}

func (f *FakeWatchdog) Kick() { f.Kicks++ }

// ErrNotSupported is returned by real backends on platforms without GPIO.
var ErrNotSupported = errors.New("hw: not supported on this platform (requires Linux)")
