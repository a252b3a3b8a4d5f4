package logic

import "github.com/sweeney/irsensor/internal/hw"

// StepTrace describes one scheduler tick.
type StepTrace struct {
	Tick    uint16
	Phase   Phase
	Route   Route
	Sample  uint16 // value routed, after bipolar re-biasing
	Stored  bool   // false while settling or when discarded
	NearLED bool
	FarLED  bool
	Mux     *hw.Mux // nil when unchanged
}

// Scheduler is the timer interrupt handler. Each tick reads the previous
// conversion, routes it, drives the LEDs and reprograms the ADC input for
// the conversion after next.
type Scheduler struct {
	st    *State
	board hw.Board
	adc   hw.ADC

	nearOn bool
	farOn  bool

	// Trace, if set, observes every tick. It runs in interrupt context.
	Trace func(StepTrace)
}

// NewScheduler creates a scheduler over st.
func NewScheduler(st *State, board hw.Board, adc hw.ADC) *Scheduler {
	return &Scheduler{st: st, board: board, adc: adc}
}

// Tick runs one phase. It must only be called with the interrupt served
// (irq.Controller.Serve) so foreground snapshots see whole updates.
func (s *Scheduler) Tick() {
	raw := s.adc.Result() & MaxSample
	tick := s.st.Tick
	s.adc.WaitSampleHold()

	step := phaseTable[PhaseOf(tick)]
	tr := StepTrace{Tick: tick, Phase: PhaseOf(tick), Route: step.route, Sample: raw}

	if step.route != RouteDiscard && s.st.Running.Load() {
		tr.Route, tr.Sample = s.store(step.route, raw, tick)
		tr.Stored = true
	}

	switch step.led {
	case LEDFarOn:
		s.setFar(true)
	case LEDNearOnFarOff:
		s.setFar(false)
		s.setNear(true)
	case LEDNearOff:
		s.setNear(false)
	}

	switch step.mux {
	case MuxFan:
		m := s.fanMux(tick)
		s.adc.Select(m)
		tr.Mux = &m
	case MuxPhoto:
		m := hw.MuxPhototransistor
		s.adc.Select(m)
		tr.Mux = &m
	}

	s.st.Tick++

	if s.Trace != nil {
		tr.NearLED, tr.FarLED = s.nearOn, s.farOn
		s.Trace(tr)
	}
}

func (s *Scheduler) store(r Route, v, tick uint16) (Route, uint16) {
	switch r {
	case RouteNear:
		s.st.Near.Update(v)
	case RouteFar:
		s.st.Far.Update(v)
	case RouteOff:
		s.st.Off.Update(v)
	case RouteFan:
		if s.st.Cal.Variant != Variant1K {
			s.st.Fan.PushActive(v)
			return RouteFanActive, v
		}
		// two's complement to offset binary
		v ^= 0x200
		if !fanHalf(tick) {
			s.st.Fan.PushActive(v)
			return RouteFanActive, v
		}
		s.st.Fan.PushOffset(v)
		return RouteFanOffset, v
	}
	return r, v
}

// fanMux selects the thermistor input. On the 1K board the differential
// pair polarity alternates each cycle so that successive fan readings
// measure the thermistor and the reference.
func (s *Scheduler) fanMux(tick uint16) hw.Mux {
	if s.st.Cal.Variant != Variant1K {
		return hw.MuxThermistor
	}
	if fanHalf(tick) {
		return hw.MuxThermistorDiff
	}
	return hw.MuxReferenceDiff
}

func (s *Scheduler) setNear(on bool) {
	s.nearOn = on
	s.board.SetNearLED(on)
}

func (s *Scheduler) setFar(on bool) {
	s.farOn = on
	s.board.SetFarLED(on)
}
