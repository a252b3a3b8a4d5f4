// Package sim is a physical simulation of the sensor board: a reflective
// target in front of the two IR LEDs and a thermistor warmed by a heat
// source and cooled by the fan. It implements hw.Board, hw.ADC and
// hw.Trigger so the core runs against it unchanged.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sweeney/irsensor/internal/hw"
)

// Environment is the physical state seen by the sensor.
type Environment struct {
	DistanceMM   float64 // target distance
	Ambient      float64 // ambient IR in ADC counts
	TemperatureC float64 // thermistor temperature
	Disconnected bool    // thermistor open circuit
}

// Thermal drives TemperatureC towards HotC with the fan off and CoolC
// with it on, with first-order time constant Tau. Zero Tau disables it.
type Thermal struct {
	HotC  float64
	CoolC float64
	Tau   time.Duration
}

// Config configures a Board.
type Config struct {
	Differential bool // mode input
	OneK         bool // variant input
	Env          Environment
	Thermal      Thermal
	Noise        float64 // uniform noise amplitude on photo readings, counts
	Seed         int64
}

// DefaultConfig is a differential 1K board with the target out of range
// at room temperature.
func DefaultConfig() Config {
	return Config{
		Differential: true,
		OneK:         true,
		Env: Environment{
			DistanceMM:   10,
			Ambient:      20,
			TemperatureC: 25,
		},
	}
}

// Board is a simulated sensor board and ADC.
type Board struct {
	mu  sync.Mutex
	cfg Config
	env Environment
	rng *rand.Rand

	nearLED bool
	farLED  bool
	lineA   bool
	lineB   bool
	fan     bool
	closed  bool

	mux      hw.Mux
	captured uint16 // conversion in progress
	result   uint16 // last completed conversion
	triggers uint64
}

var (
	_ hw.Board   = (*Board)(nil)
	_ hw.ADC     = (*Board)(nil)
	_ hw.Trigger = (*Board)(nil)
)

// New creates a simulated board.
func New(cfg Config) *Board {
	return &Board{
		cfg: cfg,
		env: cfg.Env,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		mux: hw.MuxPhototransistor,
	}
}

func (b *Board) SetNearLED(on bool) {
	b.mu.Lock()
	b.nearLED = on
	b.mu.Unlock()
}

func (b *Board) SetFarLED(on bool) {
	b.mu.Lock()
	b.farLED = on
	b.mu.Unlock()
}

func (b *Board) SetOutputLines(a, bl bool) {
	b.mu.Lock()
	b.lineA, b.lineB = a, bl
	b.mu.Unlock()
}

func (b *Board) SetFan(on bool) {
	b.mu.Lock()
	b.fan = on
	b.mu.Unlock()
}

func (b *Board) Fan() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fan
}

func (b *Board) DifferentialMode() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Differential
}

func (b *Board) Variant1K() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.OneK
}

// Close marks the board closed. The simulation keeps running.
func (b *Board) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Select sets the input for the next conversion.
func (b *Board) Select(m hw.Mux) {
	b.mu.Lock()
	b.mux = m
	b.mu.Unlock()
}

// WaitSampleHold returns immediately; Trigger samples atomically.
func (b *Board) WaitSampleHold() {}

// Result returns the conversion completed at the last Trigger.
func (b *Board) Result() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// Trigger completes the conversion in progress and starts a new one that
// samples the LEDs and mux as they are now.
func (b *Board) Trigger() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = b.captured
	b.captured = b.sample()
	b.triggers++
}

func (b *Board) sample() uint16 {
	photo := Photocurrent(b.env.DistanceMM, b.env.Ambient, b.nearLED, b.farLED)
	if b.cfg.Noise > 0 {
		photo = clamp(float64(photo) + (b.rng.Float64()*2-1)*b.cfg.Noise)
	}
	return Conversion(b.mux, photo, b.env.TemperatureC, b.cfg.OneK, b.env.Disconnected)
}

// Advance moves the thermal model forward by dt.
func (b *Board) Advance(dt time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	th := b.cfg.Thermal
	if th.Tau <= 0 || dt <= 0 {
		return
	}
	target := th.HotC
	if b.fan {
		target = th.CoolC
	}
	k := 1 - math.Exp(-float64(dt)/float64(th.Tau))
	b.env.TemperatureC += (target - b.env.TemperatureC) * k
}

// Environment returns the current physical state.
func (b *Board) Environment() Environment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.env
}

// SetDistance moves the target.
func (b *Board) SetDistance(mm float64) {
	b.mu.Lock()
	b.env.DistanceMM = mm
	b.mu.Unlock()
}

// SetTemperature sets the thermistor temperature.
func (b *Board) SetTemperature(c float64) {
	b.mu.Lock()
	b.env.TemperatureC = c
	b.mu.Unlock()
}

// SetAmbient sets the ambient IR level.
func (b *Board) SetAmbient(counts float64) {
	b.mu.Lock()
	b.env.Ambient = counts
	b.mu.Unlock()
}

// SetDisconnected opens or closes the thermistor circuit.
func (b *Board) SetDisconnected(open bool) {
	b.mu.Lock()
	b.env.Disconnected = open
	b.mu.Unlock()
}

// SetDifferential sets the mode input.
func (b *Board) SetDifferential(on bool) {
	b.mu.Lock()
	b.cfg.Differential = on
	b.mu.Unlock()
}

// Lines returns the output line states.
func (b *Board) Lines() (a, bl bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lineA, b.lineB
}

// LEDs returns the LED states.
func (b *Board) LEDs() (near, far bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nearLED, b.farLED
}

// Triggers returns the number of conversions started.
func (b *Board) Triggers() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.triggers
}

// Sweep moves the target back and forth between From and To over Period.
type Sweep struct {
	From   float64
	To     float64
	Period time.Duration
}

// At returns the target distance elapsed into the sweep (triangle wave).
func (s Sweep) At(elapsed time.Duration) float64 {
	if s.Period <= 0 {
		return s.From
	}
	phase := math.Mod(float64(elapsed)/float64(s.Period), 1)
	if phase > 0.5 {
		phase = 1 - phase
	}
	return s.From + (s.To-s.From)*phase*2
}

// Run advances the environment every step until ctx is cancelled: the
// thermal model always, and the target position when sweep is non-nil.
func (b *Board) Run(ctx context.Context, step time.Duration, sweep *Sweep) {
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	start := time.Now()
	last := start
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.Advance(now.Sub(last))
			last = now
			if sweep != nil {
				b.SetDistance(sweep.At(now.Sub(start)))
			}
		}
	}
}
