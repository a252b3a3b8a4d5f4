package hw

import (
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// ADS1115 registers
const (
	regConversion = 0x00
	regConfig     = 0x01
)

// ADS1115 config fields
const (
	cfgMuxDiff13 uint16 = 0x2000 // AIN1 - AIN3
	cfgMuxAIN0   uint16 = 0x4000
	cfgMuxAIN1   uint16 = 0x5000

	cfgGain4V096 uint16 = 0x0200
	cfgGain0V256 uint16 = 0x0A00

	cfgStart         uint16 = 0x8000 // OS: begin a single conversion
	cfgModeSingle    uint16 = 0x0100
	cfgDataRate860   uint16 = 0x00E0
	cfgComparatorOff uint16 = 0x0003
)

// DefaultADS1115Addr is the address with ADDR tied to ground.
const DefaultADS1115Addr = 0x48

// ADS1115DataRate is the configured conversion rate in samples per second.
const ADS1115DataRate = 860

// MaxADS1115InterruptHz is the fastest scheduler rate at which one
// conversion, two I2C transfers and the converter's 10% clock tolerance
// fit inside a tick.
const MaxADS1115InterruptHz = ADS1115DataRate / 2

// ADS1115InterruptHz is the default scheduler rate on the ADS1115 backend.
const ADS1115InterruptHz = 400

// ADS1115 is an I2C converter wired with the phototransistor on AIN0, the
// thermistor on AIN1 and the thermistor reference on AIN3. It runs in
// single-shot mode so each timer event owns exactly one conversion:
// Trigger latches the conversion started by the previous Trigger and starts
// the next one on the current selection.
type ADS1115 struct {
	dev    *i2c.Dev
	closer i2c.BusCloser

	mu      sync.Mutex
	mux     Mux    // selection for the next conversion
	reading Mux    // selection of the conversion in flight
	result  uint16 // last completed conversion, scaled
	log     *zap.Logger
	errs    errorLog
}

// OpenADS1115 initializes the host drivers and opens the named I2C bus
// ("" selects the first available).
func OpenADS1115(bus string, addr uint16, log *zap.Logger) (*ADS1115, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", bus, err)
	}
	a := NewADS1115(b, addr, log)
	a.closer = b
	if err := a.writeConfig(MuxPhototransistor, false); err != nil {
		b.Close()
		return nil, fmt.Errorf("configure ads1115: %w", err)
	}
	return a, nil
}

// NewADS1115 wraps an already open bus.
func NewADS1115(bus i2c.Bus, addr uint16, log *zap.Logger) *ADS1115 {
	return &ADS1115{
		dev:     &i2c.Dev{Bus: bus, Addr: addr},
		mux:     MuxPhototransistor,
		reading: MuxPhototransistor,
		log:     log,
		errs:    errorLog{log: log},
	}
}

// configWord encodes a mux selection. Reversed differential pairs use the
// same hardware pair; the result is negated in convert.
func configWord(m Mux) (uint16, error) {
	var mux uint16
	switch {
	case m.Differential && (m.Pos == InputThermistor && m.Neg == InputReference ||
		m.Pos == InputReference && m.Neg == InputThermistor):
		mux = cfgMuxDiff13
	case !m.Differential && m.Pos == InputPhototransistor:
		mux = cfgMuxAIN0
	case !m.Differential && m.Pos == InputThermistor:
		mux = cfgMuxAIN1
	default:
		return 0, fmt.Errorf("ads1115: unsupported mux %s", m)
	}
	gain := cfgGain4V096
	if m.Gain == Gain20 {
		gain = cfgGain0V256
	}
	return mux | gain | cfgModeSingle | cfgDataRate860 | cfgComparatorOff, nil
}

// convert scales a signed 16-bit conversion to the 10-bit result format of
// the sensor core: 0..1023 single-ended, two's complement when differential.
func convert(raw int16, m Mux) uint16 {
	if m.Differential {
		v := int32(raw) >> 6
		if m.Pos == InputReference {
			v = -v
			if v > 511 {
				v = 511
			}
		}
		return uint16(v) & 0x3ff
	}
	v := int32(raw) >> 5
	if v < 0 {
		v = 0
	}
	if v > 1023 {
		v = 1023
	}
	return uint16(v)
}

func (a *ADS1115) writeConfig(m Mux, start bool) error {
	w, err := configWord(m)
	if err != nil {
		return err
	}
	if start {
		w |= cfgStart
	}
	buf := []byte{regConfig, 0, 0}
	binary.BigEndian.PutUint16(buf[1:], w)
	return a.dev.Tx(buf, nil)
}

// Result returns the conversion latched by the last Trigger.
func (a *ADS1115) Result() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Select chooses the input for the conversion the next Trigger starts.
func (a *ADS1115) Select(m Mux) {
	if _, err := configWord(m); err != nil {
		a.errs.note("ads1115 config", err)
		return
	}
	a.mu.Lock()
	a.mux = m
	a.mu.Unlock()
}

// Trigger marks a timer event: it reads the conversion started by the
// previous event and starts the next one. The tick period must exceed
// the conversion time (see MaxADS1115InterruptHz).
func (a *ADS1115) Trigger() {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buf [2]byte
	if err := a.dev.Tx([]byte{regConversion}, buf[:]); err != nil {
		a.errs.note("ads1115 read", err)
		a.result = 0
	} else {
		a.result = convert(int16(binary.BigEndian.Uint16(buf[:])), a.reading)
	}

	if err := a.writeConfig(a.mux, true); err != nil {
		a.errs.note("ads1115 start", err)
	}
	a.reading = a.mux
}

// WaitSampleHold is a no-op: the I2C transaction outlasts the settle time.
func (a *ADS1115) WaitSampleHold() {}

// Close releases the bus if it was opened by OpenADS1115.
func (a *ADS1115) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
