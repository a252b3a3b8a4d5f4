// Package config loads the daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/logic"
	"github.com/sweeney/irsensor/internal/sim"
)

// Hardware backends.
const (
	BackendSim      = "sim"
	BackendGPIOCdev = "gpiocdev"
	BackendRPIO     = "rpio"
)

// Config represents the application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Hardware HardwareConfig `yaml:"hardware"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Serial   SerialConfig   `yaml:"serial"`
	Events   EventsConfig   `yaml:"events"`
	Sim      SimConfig      `yaml:"sim"`
}

// SensorConfig holds the core timing and thresholds. Thresholds are per
// sample.
type SensorConfig struct {
	InterruptHz         int           `yaml:"interrupt_hz"` // 0 selects the backend default
	CyclesAveraged      int           `yaml:"cycles_averaged"`
	FanSampleHz         int           `yaml:"fan_sample_hz"`
	FanSamplesAveraged  int           `yaml:"fan_samples_averaged"`
	FanOnSeconds        int           `yaml:"fan_on_seconds"`
	FarThreshold        uint16        `yaml:"far_threshold"`
	SimpleNearThreshold uint16        `yaml:"simple_near_threshold"`
	SaturatedThreshold  uint16        `yaml:"saturated_threshold"`
	SettleTicks         uint16        `yaml:"settle_ticks"`
	LoopInterval        time.Duration `yaml:"loop_interval"` // foreground step period
}

// HardwareConfig selects and wires the board backend.
type HardwareConfig struct {
	Backend string `yaml:"backend"` // sim, gpiocdev or rpio
	Chip    string `yaml:"chip"`
	NearLED int    `yaml:"near_led"`
	FarLED  []int  `yaml:"far_led"`
	Out13K  int    `yaml:"out_13k"`
	Out10K  int    `yaml:"out_10k"`
	Fan     int    `yaml:"fan"`
	Mode    int    `yaml:"mode"`
	Variant int    `yaml:"variant"`
	ADCBus  string `yaml:"adc_bus"`  // I2C bus name, empty for the first bus
	ADCAddr uint16 `yaml:"adc_addr"` // ADS1115 address
}

// WatchdogConfig configures the liveness watchdog.
type WatchdogConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Device  string        `yaml:"device"` // optional kernel watchdog, e.g. /dev/watchdog
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	BufferSize int    `yaml:"buffer_size"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SerialConfig contains the telemetry port. Empty disables telemetry.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// EventsConfig controls event reporting.
type EventsConfig struct {
	Debounce  time.Duration `yaml:"debounce"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// SimConfig describes the simulated board and environment.
type SimConfig struct {
	Mode         string        `yaml:"mode"`    // differential or simple
	Variant      string        `yaml:"variant"` // 1K or 4K7
	DistanceMM   float64       `yaml:"distance_mm"`
	Ambient      float64       `yaml:"ambient"`
	TemperatureC float64       `yaml:"temperature_c"`
	Disconnected bool          `yaml:"disconnected"`
	HotC         float64       `yaml:"hot_c"`
	CoolC        float64       `yaml:"cool_c"`
	Tau          time.Duration `yaml:"tau"`
	Noise        float64       `yaml:"noise"`
	Seed         int64         `yaml:"seed"`
	SweepFromMM  float64       `yaml:"sweep_from_mm"`
	SweepToMM    float64       `yaml:"sweep_to_mm"`
	SweepPeriod  time.Duration `yaml:"sweep_period"` // 0 holds distance_mm
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	p := logic.DefaultParams()
	pins := hw.DefaultPinMap()
	return &Config{
		LogLevel: "info",
		Sensor: SensorConfig{
			CyclesAveraged:      p.CyclesAveraged,
			FanSampleHz:         p.FanSampleHz,
			FanSamplesAveraged:  p.FanSamplesAveraged,
			FanOnSeconds:        p.FanOnSeconds,
			FarThreshold:        p.FarThreshold,
			SimpleNearThreshold: p.SimpleNearThreshold,
			SaturatedThreshold:  p.SaturatedThreshold,
			SettleTicks:         p.SettleTicks,
			LoopInterval:        time.Millisecond,
		},
		Hardware: HardwareConfig{
			Backend: BackendSim,
			Chip:    pins.Chip,
			NearLED: pins.NearLED,
			FarLED:  pins.FarLED,
			Out13K:  pins.Out13K,
			Out10K:  pins.Out10K,
			Fan:     pins.Fan,
			Mode:    pins.Mode,
			Variant: pins.Variant,
			ADCAddr: hw.DefaultADS1115Addr,
		},
		Watchdog: WatchdogConfig{
			Timeout: hw.DefaultWatchdogTimeout,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			ClientID:   "irsensor",
			BufferSize: 100,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
		Events: EventsConfig{
			Debounce:  250 * time.Millisecond,
			Heartbeat: 15 * time.Minute,
		},
		Sim: SimConfig{
			Mode:         "differential",
			Variant:      "1K",
			DistanceMM:   10,
			Ambient:      20,
			TemperatureC: 25,
			HotC:         50,
			CoolC:        30,
			Tau:          20 * time.Second,
			SweepFromMM:  30,
			SweepToMM:    1,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

// YAML returns the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills fields left empty by a partial file.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	s := &c.Sensor
	if s.CyclesAveraged == 0 {
		s.CyclesAveraged = def.Sensor.CyclesAveraged
	}
	if s.FanSampleHz == 0 {
		s.FanSampleHz = def.Sensor.FanSampleHz
	}
	if s.FanSamplesAveraged == 0 {
		s.FanSamplesAveraged = def.Sensor.FanSamplesAveraged
	}
	if s.FanOnSeconds == 0 {
		s.FanOnSeconds = def.Sensor.FanOnSeconds
	}
	if s.SaturatedThreshold == 0 {
		s.SaturatedThreshold = def.Sensor.SaturatedThreshold
	}
	if s.LoopInterval == 0 {
		s.LoopInterval = def.Sensor.LoopInterval
	}

	if c.Hardware.Backend == "" {
		c.Hardware.Backend = def.Hardware.Backend
	}
	if c.Hardware.Chip == "" {
		c.Hardware.Chip = def.Hardware.Chip
	}
	if len(c.Hardware.FarLED) == 0 {
		c.Hardware.FarLED = def.Hardware.FarLED
	}
	if c.Hardware.ADCAddr == 0 {
		c.Hardware.ADCAddr = def.Hardware.ADCAddr
	}

	if c.Watchdog.Timeout == 0 {
		c.Watchdog.Timeout = def.Watchdog.Timeout
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}

	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Sim.Mode == "" {
		c.Sim.Mode = def.Sim.Mode
	}
	if c.Sim.Variant == "" {
		c.Sim.Variant = def.Sim.Variant
	}
}

// InterruptHz returns the scheduler rate, resolving 0 to the backend
// default. The simulator runs the firmware rate; the ADS1115 backends are
// limited by the converter.
func (c *Config) InterruptHz() int {
	if c.Sensor.InterruptHz != 0 {
		return c.Sensor.InterruptHz
	}
	if c.Hardware.Backend == BackendSim {
		return logic.DefaultParams().InterruptHz
	}
	return hw.ADS1115InterruptHz
}

// Validate checks the sensor parameters and enumerated fields.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	switch c.Hardware.Backend {
	case BackendSim:
	case BackendGPIOCdev, BackendRPIO:
		if hz := c.InterruptHz(); hz > hw.MaxADS1115InterruptHz {
			return fmt.Errorf("interrupt frequency %d Hz exceeds the ADS1115 limit of %d Hz", hz, hw.MaxADS1115InterruptHz)
		}
	default:
		return fmt.Errorf("unknown hardware backend %q", c.Hardware.Backend)
	}
	if c.Sim.Mode != "differential" && c.Sim.Mode != "simple" {
		return fmt.Errorf("unknown sim mode %q", c.Sim.Mode)
	}
	if c.Sim.Variant != "1K" && c.Sim.Variant != "4K7" {
		return fmt.Errorf("unknown sim variant %q", c.Sim.Variant)
	}
	if c.Watchdog.Timeout < 0 || c.Sensor.LoopInterval <= 0 {
		return errors.New("watchdog timeout and loop interval must be positive")
	}
	timeout := c.Watchdog.Timeout
	if timeout == 0 {
		timeout = hw.DefaultWatchdogTimeout
	}
	// Only fan checks kick the watchdog.
	if check := time.Second / time.Duration(c.Sensor.FanSampleHz); timeout <= 2*check {
		return fmt.Errorf("watchdog timeout %s must exceed two fan check intervals (%s)", timeout, 2*check)
	}
	if c.Sim.SweepPeriod > 0 && c.Sim.SweepFromMM == c.Sim.SweepToMM {
		return fmt.Errorf("sweep from %g mm to %g mm does not move the target", c.Sim.SweepFromMM, c.Sim.SweepToMM)
	}
	return nil
}

// Params returns the core parameters.
func (c *Config) Params() logic.Params {
	s := c.Sensor
	return logic.Params{
		InterruptHz:         c.InterruptHz(),
		CyclesAveraged:      s.CyclesAveraged,
		FanSampleHz:         s.FanSampleHz,
		FanSamplesAveraged:  s.FanSamplesAveraged,
		FanOnSeconds:        s.FanOnSeconds,
		FarThreshold:        s.FarThreshold,
		SimpleNearThreshold: s.SimpleNearThreshold,
		SaturatedThreshold:  s.SaturatedThreshold,
		SettleTicks:         s.SettleTicks,
	}
}

// PinMap returns the GPIO wiring.
func (c *Config) PinMap() hw.PinMap {
	h := c.Hardware
	return hw.PinMap{
		Chip:    h.Chip,
		NearLED: h.NearLED,
		FarLED:  h.FarLED,
		Out13K:  h.Out13K,
		Out10K:  h.Out10K,
		Fan:     h.Fan,
		Mode:    h.Mode,
		Variant: h.Variant,
	}
}

// SimBoard returns the simulated board configuration.
func (c *Config) SimBoard() sim.Config {
	s := c.Sim
	return sim.Config{
		Differential: s.Mode == "differential",
		OneK:         s.Variant == "1K",
		Env: sim.Environment{
			DistanceMM:   s.DistanceMM,
			Ambient:      s.Ambient,
			TemperatureC: s.TemperatureC,
			Disconnected: s.Disconnected,
		},
		Thermal: sim.Thermal{HotC: s.HotC, CoolC: s.CoolC, Tau: s.Tau},
		Noise:   s.Noise,
		Seed:    s.Seed,
	}
}

// Sweep returns the simulated target motion.
func (c *Config) Sweep() sim.Sweep {
	if c.Sim.SweepPeriod <= 0 {
		return sim.Sweep{From: c.Sim.DistanceMM}
	}
	return sim.Sweep{From: c.Sim.SweepFromMM, To: c.Sim.SweepToMM, Period: c.Sim.SweepPeriod}
}
