package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/irq"
)

// Device is one power-on lifetime of the sensor: the state, the interrupt
// handler and the two foreground controllers wired to a board. A watchdog
// reset is modelled by discarding the Device and building a new one.
type Device struct {
	State     *State
	Scheduler *Scheduler
	Fan       *FanController
	Sensor    *SensorController
	IRQ       *irq.Controller

	board hw.Board
	adc   hw.ADC
}

// NewDevice performs a cold start. The variant input is read exactly once;
// the IR accumulators start empty and the fan accumulators start on the
// connected threshold. Outputs, LEDs and fan are driven off and the ADC is
// pointed at the phototransistor. The scheduler writes nothing until
// Settle completes.
func NewDevice(p Params, board hw.Board, adc hw.ADC, wd hw.Watchdog, ic *irq.Controller) (*Device, error) {
	if ic == nil {
		ic = irq.New()
	}
	v := Variant4K7
	if board.Variant1K() {
		v = Variant1K
	}
	st, err := NewState(p, NewCalibration(v, p))
	if err != nil {
		return nil, fmt.Errorf("cold start: %w", err)
	}

	board.SetOutputLines(false, false)
	board.SetNearLED(false)
	board.SetFarLED(false)
	board.SetFan(false)
	adc.Select(hw.MuxPhototransistor)

	fan := NewFanController(st, board, wd, ic)
	return &Device{
		State:     st,
		Scheduler: NewScheduler(st, board, adc),
		Fan:       fan,
		Sensor:    NewSensorController(st, board, fan, ic),
		IRQ:       ic,
		board:     board,
		adc:       adc,
	}, nil
}

// Interrupt delivers one timer event: the converter is triggered and the
// scheduler tick runs in interrupt context.
func (d *Device) Interrupt() {
	d.IRQ.Serve(func() {
		if t, ok := d.adc.(hw.Trigger); ok {
			t.Trigger()
		}
		d.Scheduler.Tick()
	})
}

// Settle waits, checking on each pace event, until the scheduler has run
// SettleTicks times, then enables accumulator writes. The pipeline holds
// stale conversions until then.
func (d *Device) Settle(ctx context.Context, pace <-chan time.Time) error {
	for d.Sensor.Ticks() < d.State.Params.SettleTicks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pace:
		}
	}
	d.State.LastFanCheck = 0
	d.State.Running.Store(true)
	return nil
}

// Running reports whether settling has finished.
func (d *Device) Running() bool {
	return d.State.Running.Load()
}

// Variant returns the board variant read at cold start.
func (d *Device) Variant() Variant {
	return d.State.Cal.Variant
}
