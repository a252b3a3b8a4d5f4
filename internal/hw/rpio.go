//go:build linux

package hw

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RpioBoard drives the sensor lines through memory-mapped Raspberry Pi GPIO.
// Only one RpioBoard may be open at a time.
type RpioBoard struct {
	near    rpio.Pin
	far     []rpio.Pin
	out13K  rpio.Pin
	out10K  rpio.Pin
	fan     rpio.Pin
	mode    rpio.Pin
	variant rpio.Pin
	fanOn   bool
}

// NewRpioBoard maps GPIO memory and configures the lines. PinMap.Chip is
// ignored.
func NewRpioBoard(pins PinMap) (*RpioBoard, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}
	b := &RpioBoard{
		near:    rpio.Pin(pins.NearLED),
		out13K:  rpio.Pin(pins.Out13K),
		out10K:  rpio.Pin(pins.Out10K),
		fan:     rpio.Pin(pins.Fan),
		mode:    rpio.Pin(pins.Mode),
		variant: rpio.Pin(pins.Variant),
	}
	for _, p := range pins.FarLED {
		b.far = append(b.far, rpio.Pin(p))
	}

	for _, p := range append([]rpio.Pin{b.near, b.out13K, b.out10K, b.fan}, b.far...) {
		p.Output()
		p.Low()
	}
	for _, p := range []rpio.Pin{b.mode, b.variant} {
		p.Input()
		p.PullUp()
	}
	return b, nil
}

func write(p rpio.Pin, on bool) {
	if on {
		p.High()
	} else {
		p.Low()
	}
}

func (b *RpioBoard) SetNearLED(on bool) { write(b.near, on) }

func (b *RpioBoard) SetFarLED(on bool) {
	for _, p := range b.far {
		write(p, on)
	}
}

func (b *RpioBoard) SetOutputLines(a, bl bool) {
	write(b.out13K, a)
	write(b.out10K, bl)
}

func (b *RpioBoard) SetFan(on bool) {
	write(b.fan, on)
	b.fanOn = on
}

func (b *RpioBoard) Fan() bool { return b.fanOn }

func (b *RpioBoard) DifferentialMode() bool { return b.mode.Read() == rpio.High }

func (b *RpioBoard) Variant1K() bool { return b.variant.Read() == rpio.High }

// Close drives the outputs low and unmaps GPIO memory.
func (b *RpioBoard) Close() error {
	for _, p := range append([]rpio.Pin{b.near, b.out13K, b.out10K, b.fan}, b.far...) {
		p.Low()
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpio memory: %w", err)
	}
	return nil
}
