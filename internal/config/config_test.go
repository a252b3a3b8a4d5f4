package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/logic"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, logic.DefaultParams(), cfg.Params())
	assert.Equal(t, BackendSim, cfg.Hardware.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Watchdog.Timeout)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irsensor.yaml")
	data := `
sensor:
  far_threshold: 12
hardware:
  backend: gpiocdev
  far_led: [20]
mqtt:
  broker: ""
sim:
  variant: ""
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(12), cfg.Sensor.FarThreshold)
	assert.Equal(t, 16, cfg.Sensor.FanSampleHz, "unspecified keys keep defaults")
	assert.Equal(t, hw.ADS1115InterruptHz, cfg.Params().InterruptHz, "converter backends default to the ADS1115 rate")
	assert.Equal(t, BackendGPIOCdev, cfg.Hardware.Backend)
	assert.Equal(t, []int{20}, cfg.PinMap().FarLED)
	assert.Empty(t, cfg.MQTT.Broker, "empty broker disables MQTT")
	assert.Equal(t, "1K", cfg.Sim.Variant, "empty variant is defaulted")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "sensor: ["},
		{"bad window", "sensor:\n  cycles_averaged: 6\n"},
		{"bad backend", "hardware:\n  backend: spi\n"},
		{"bad sim mode", "sim:\n  mode: fancy\n"},
		{"adc too slow", "sensor:\n  interrupt_hz: 8000\nhardware:\n  backend: gpiocdev\n"},
		{"watchdog shorter than fan checks", "watchdog:\n  timeout: 100ms\n"},
		{"sweep goes nowhere", "sim:\n  sweep_from_mm: 5\n  sweep_to_mm: 5\n  sweep_period: 10s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestInterruptHzByBackend(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8000, cfg.Params().InterruptHz)

	cfg.Hardware.Backend = BackendRPIO
	assert.Equal(t, hw.ADS1115InterruptHz, cfg.Params().InterruptHz)
	require.NoError(t, cfg.Validate())

	cfg.Sensor.InterruptHz = 8000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADS1115")

	cfg.Sensor.InterruptHz = hw.MaxADS1115InterruptHz - hw.MaxADS1115InterruptHz%16
	assert.NoError(t, cfg.Validate())

	cfg.Hardware.Backend = BackendSim
	cfg.Sensor.InterruptHz = 8000
	assert.NoError(t, cfg.Validate(), "the simulator keeps the firmware rate")
}

func TestWatchdogMustOutlastFanChecks(t *testing.T) {
	cfg := Default()
	cfg.Watchdog.Timeout = 125 * time.Millisecond // exactly two checks at 16 Hz
	assert.Error(t, cfg.Validate())

	cfg.Watchdog.Timeout = 126 * time.Millisecond
	assert.NoError(t, cfg.Validate())

	cfg.Watchdog.Timeout = 0
	assert.NoError(t, cfg.Validate(), "zero uses the default timeout")

	cfg.Sensor.FanSampleHz = 2
	cfg.Sensor.FanOnSeconds = 2
	assert.Error(t, cfg.Validate(), "default timeout is too short for 2 Hz checks")
}

func TestSweepNeedsDistinctEnds(t *testing.T) {
	cfg := Default()
	cfg.Sim.SweepPeriod = 4 * time.Second
	require.NoError(t, cfg.Validate(), "default ends move the target")

	cfg.Sim.SweepFromMM = 0
	cfg.Sim.SweepToMM = 0
	assert.Error(t, cfg.Validate())

	cfg.Sim.SweepPeriod = 0
	assert.NoError(t, cfg.Validate(), "ends are unused without a period")
}

func TestLoadWrapsParamErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensor:\n  fan_sample_hz: 7\n"), 0644))
	_, err := Load(path)
	assert.True(t, errors.Is(err, logic.ErrInvalidParams), "got %v", err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irsensor.yaml")
	cfg := Default()
	cfg.Hardware.Backend = BackendRPIO
	cfg.Sim.SweepPeriod = 10 * time.Second
	cfg.Events.Heartbeat = 0
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSimBoard(t *testing.T) {
	cfg := Default()
	cfg.Sim.Mode = "simple"
	cfg.Sim.Variant = "4K7"
	cfg.Sim.Disconnected = true

	b := cfg.SimBoard()
	assert.False(t, b.Differential)
	assert.False(t, b.OneK)
	assert.True(t, b.Env.Disconnected)
	assert.Equal(t, 25.0, b.Env.TemperatureC)
	assert.Equal(t, 20*time.Second, b.Thermal.Tau)
}

func TestSweep(t *testing.T) {
	cfg := Default()
	s := cfg.Sweep()
	assert.Equal(t, 10.0, s.At(time.Hour), "no sweep holds the configured distance")

	cfg.Sim.SweepFromMM = 8
	cfg.Sim.SweepToMM = 0
	cfg.Sim.SweepPeriod = 4 * time.Second
	assert.InDelta(t, 0, cfg.Sweep().At(2*time.Second), 1e-9)
}
