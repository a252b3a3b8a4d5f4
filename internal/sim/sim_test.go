package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/logic"
)

func TestPhotocurrent(t *testing.T) {
	assert.Equal(t, uint16(20), Photocurrent(3, 20, false, false))
	assert.Equal(t, uint16(920), Photocurrent(0, 20, true, false))
	assert.Equal(t, uint16(420), Photocurrent(0, 20, false, true))
	assert.Equal(t, uint16(1023), Photocurrent(0, 200, true, true))
	assert.Equal(t, Photocurrent(0, 0, true, false), Photocurrent(-1, 0, true, false))

	// Near falls off faster than far.
	assert.Greater(t, Photocurrent(1, 0, true, false), Photocurrent(1, 0, false, true))
	assert.Less(t, Photocurrent(5, 0, true, false), Photocurrent(5, 0, false, true))
}

func TestThermistorOhms(t *testing.T) {
	assert.InDelta(t, 100e3, ThermistorOhms(25), 1)
	assert.Less(t, ThermistorOhms(50), ThermistorOhms(25))
}

func TestConversionSingleEnded(t *testing.T) {
	assert.Equal(t, uint16(977), Conversion(hw.MuxThermistor, 0, 25, false, false))
	assert.Equal(t, uint16(1023), Conversion(hw.MuxThermistor, 0, 25, false, true))
	assert.Equal(t, uint16(500), Conversion(hw.MuxPhototransistor, 500, 25, false, false))
}

func TestConversionDifferential(t *testing.T) {
	therm := Conversion(hw.MuxThermistorDiff, 0, 25, true, false)
	ref := Conversion(hw.MuxReferenceDiff, 0, 25, true, false)
	assert.Equal(t, uint16(1024-96), therm, "negative result is two's complement")
	assert.Equal(t, uint16(96), ref)

	// Disconnected: thermistor node above the reference.
	assert.Equal(t, uint16(5), Conversion(hw.MuxThermistorDiff, 0, 25, true, true))

	// Clamped to the bipolar range.
	assert.Equal(t, uint16(0x200), Conversion(hw.MuxThermistorDiff, 0, 200, true, false))
}

func TestTriggerPipeline(t *testing.T) {
	b := New(DefaultConfig())
	b.SetDistance(0)
	b.SetNearLED(true)

	b.Trigger()
	assert.Equal(t, uint16(0), b.Result(), "first trigger completes an empty conversion")

	// State changes after a trigger do not affect the conversion in flight.
	b.SetNearLED(false)
	b.Select(hw.MuxThermistorDiff)
	b.Trigger()
	assert.Equal(t, uint16(920), b.Result())

	b.Trigger()
	assert.Equal(t, uint16(1024-96), b.Result())
	assert.Equal(t, uint64(3), b.Triggers())
}

func TestAdvanceThermal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thermal = Thermal{HotC: 50, CoolC: 30, Tau: time.Second}
	b := New(cfg)

	b.Advance(10 * time.Second)
	assert.InDelta(t, 50, b.Environment().TemperatureC, 0.01)

	b.SetFan(true)
	b.Advance(time.Second)
	assert.InDelta(t, 30+20*0.3679, b.Environment().TemperatureC, 0.01)

	cfg.Thermal.Tau = 0
	still := New(cfg)
	still.Advance(time.Hour)
	assert.Equal(t, 25.0, still.Environment().TemperatureC)
}

func TestSweep(t *testing.T) {
	s := Sweep{From: 10, To: 0, Period: 10 * time.Second}
	assert.InDelta(t, 10, s.At(0), 1e-9)
	assert.InDelta(t, 5, s.At(2500*time.Millisecond), 1e-9)
	assert.InDelta(t, 0, s.At(5*time.Second), 1e-9)
	assert.InDelta(t, 10, s.At(10*time.Second), 1e-9)
	assert.Equal(t, 3.0, Sweep{From: 3}.At(time.Minute))
}

func TestRunMovesTargetAndTemperature(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thermal = Thermal{HotC: 80, CoolC: 20, Tau: 50 * time.Millisecond}
	b := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, time.Millisecond, &Sweep{From: 2, To: 2, Period: time.Second})
		close(done)
	}()

	assert.Eventually(t, func() bool {
		env := b.Environment()
		return env.DistanceMM == 2 && env.TemperatureC > 70
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func newSimDevice(t *testing.T, cfg Config) (*logic.Device, *Board) {
	t.Helper()
	b := New(cfg)
	d, err := logic.NewDevice(logic.DefaultParams(), b, b, &hw.FakeWatchdog{}, nil)
	require.NoError(t, err)
	d.State.Running.Store(true)
	return d, b
}

// run delivers n interrupts with a foreground step every cycle.
func run(d *logic.Device, n int) logic.StepResult {
	var res logic.StepResult
	for i := 0; i < n; i++ {
		d.Interrupt()
		if i%16 == 15 {
			res = d.Sensor.Step()
		}
	}
	return res
}

func TestSimulatedDistanceLevels(t *testing.T) {
	tests := []struct {
		distance     float64
		differential bool
		want         logic.Level
	}{
		{0, true, logic.LevelSaturated},
		{1.5, true, logic.LevelOn},
		{2, true, logic.LevelApproaching},
		{10, true, logic.LevelOff},
		{1.5, false, logic.LevelOn},
		{2, false, logic.LevelOn},
		{10, false, logic.LevelOff},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Differential = tt.differential
		cfg.Env.DistanceMM = tt.distance
		d, b := newSimDevice(t, cfg)

		res := run(d, 64)
		assert.Equal(t, tt.want, res.Level, "distance %.1f differential %v", tt.distance, tt.differential)
		a, bl := b.Lines()
		assert.Equal(t, tt.want, logic.LevelFromLines(a, bl))
	}
}

func TestSimulatedFan(t *testing.T) {
	for _, oneK := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.OneK = oneK
		d, b := newSimDevice(t, cfg)

		run(d, 2000)
		assert.False(t, b.Fan(), "fan on at 25C (1K=%v)", oneK)

		b.SetTemperature(50)
		run(d, 2000)
		assert.True(t, b.Fan(), "fan off at 50C (1K=%v)", oneK)

		b.SetTemperature(25)
		run(d, 1500)
		assert.True(t, b.Fan(), "minimum run time not honoured (1K=%v)", oneK)
		run(d, 20000)
		assert.False(t, b.Fan(), "fan stuck on after cooling (1K=%v)", oneK)

		b.SetDisconnected(true)
		run(d, 2000)
		assert.True(t, b.Fan(), "disconnected thermistor must run the fan (1K=%v)", oneK)
	}
}
