//go:build linux

package hw

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

// CdevBoard drives the sensor lines through the Linux GPIO character device.
type CdevBoard struct {
	chip    *gpiocdev.Chip
	near    *gpiocdev.Line
	far     *gpiocdev.Lines
	out13K  *gpiocdev.Line
	out10K  *gpiocdev.Line
	fan     *gpiocdev.Line
	mode    *gpiocdev.Line
	variant *gpiocdev.Line

	farOff []int
	farOn  []int
	fanOn  bool
	log    *zap.Logger
	errs   errorLog
}

// NewCdevBoard requests all sensor lines. Outputs start low; inputs get
// pull-ups so an unconnected mode line selects differential mode and an
// unconnected sense line selects the 1K variant.
func NewCdevBoard(pins PinMap, log *zap.Logger) (*CdevBoard, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	b := &CdevBoard{chip: chip, log: log, errs: errorLog{log: log}}
	b.farOff, b.farOn = groupLevels(len(pins.FarLED))

	if b.near, err = chip.RequestLine(pins.NearLED, gpiocdev.AsOutput(0)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request near LED pin %d: %w", pins.NearLED, err)
	}
	if b.far, err = chip.RequestLines(pins.FarLED, gpiocdev.AsOutput(b.farOff...)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request far LED pins %v: %w", pins.FarLED, err)
	}
	if b.out13K, err = chip.RequestLine(pins.Out13K, gpiocdev.AsOutput(0)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request 13K output pin %d: %w", pins.Out13K, err)
	}
	if b.out10K, err = chip.RequestLine(pins.Out10K, gpiocdev.AsOutput(0)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request 10K output pin %d: %w", pins.Out10K, err)
	}
	if b.fan, err = chip.RequestLine(pins.Fan, gpiocdev.AsOutput(0)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request fan pin %d: %w", pins.Fan, err)
	}
	if b.mode, err = chip.RequestLine(pins.Mode, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		b.Close()
		return nil, fmt.Errorf("request mode pin %d: %w", pins.Mode, err)
	}
	if b.variant, err = chip.RequestLine(pins.Variant, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		b.Close()
		return nil, fmt.Errorf("request variant pin %d: %w", pins.Variant, err)
	}
	return b, nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}

func (b *CdevBoard) SetNearLED(on bool) {
	b.errs.note("near LED", b.near.SetValue(level(on)))
}

// groupLevels returns all-low and all-high values for a group of n lines.
func groupLevels(n int) (off, on []int) {
	off = make([]int, n)
	on = make([]int, n)
	for i := range on {
		on[i] = 1
	}
	return off, on
}

func (b *CdevBoard) farValues(on bool) []int {
	if on {
		return b.farOn
	}
	return b.farOff
}

// SetFarLED runs on every tick, so the values are built once up front.
func (b *CdevBoard) SetFarLED(on bool) {
	b.errs.note("far LED", b.far.SetValues(b.farValues(on)))
}

// SetOutputLines writes the two lines one at a time, so the controller may
// briefly see an intermediate level.
func (b *CdevBoard) SetOutputLines(a, bl bool) {
	b.errs.note("13K output", b.out13K.SetValue(level(a)))
	b.errs.note("10K output", b.out10K.SetValue(level(bl)))
}

func (b *CdevBoard) SetFan(on bool) {
	if err := b.fan.SetValue(level(on)); err != nil {
		b.errs.note("fan", err)
		return
	}
	b.fanOn = on
}

func (b *CdevBoard) Fan() bool { return b.fanOn }

func (b *CdevBoard) DifferentialMode() bool {
	v, err := b.mode.Value()
	if err != nil {
		b.errs.note("mode input", err)
		return true
	}
	return v != 0
}

func (b *CdevBoard) Variant1K() bool {
	v, err := b.variant.Value()
	if err != nil {
		b.errs.note("variant input", err)
		return true
	}
	return v != 0
}

// Close drives the outputs low and releases all lines.
func (b *CdevBoard) Close() error {
	var errs []error
	for name, l := range map[string]*gpiocdev.Line{
		"near LED": b.near, "13K output": b.out13K, "10K output": b.out10K, "fan": b.fan,
	} {
		if l == nil {
			continue
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	if b.far != nil {
		if err := b.far.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close far LED: %w", err))
		}
	}
	for name, l := range map[string]*gpiocdev.Line{"mode": b.mode, "variant": b.variant} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
