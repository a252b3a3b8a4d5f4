package logic

import (
	"errors"
	"testing"
)

func TestDefaultParamsValid(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	if p.FanIntervalTicks() != 500 {
		t.Errorf("fan interval %d, want 500", p.FanIntervalTicks())
	}
	if p.FanHoldPeriods() != 31 {
		t.Errorf("hold periods %d, want 31", p.FanHoldPeriods())
	}
	if p.FarSum() != 80 || p.SimpleNearSum() != 240 || p.SaturatedSum() != 6960 {
		t.Errorf("sums %d %d %d", p.FarSum(), p.SimpleNearSum(), p.SaturatedSum())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"zero interrupt rate", func(p *Params) { p.InterruptHz = 0 }},
		{"fan rate does not divide", func(p *Params) { p.FanSampleHz = 15 }},
		{"fan interval too long", func(p *Params) { p.InterruptHz = 64000; p.FanSampleHz = 1 }},
		{"cycles not power of two", func(p *Params) { p.CyclesAveraged = 12 }},
		{"fan window not power of two", func(p *Params) { p.FanSamplesAveraged = 0 }},
		{"cycles overflow", func(p *Params) { p.CyclesAveraged = 128 }},
		{"hold too long", func(p *Params) { p.FanOnSeconds = 17 }},
		{"threshold out of range", func(p *Params) { p.SaturatedThreshold = 1024 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestCalibrationVariants(t *testing.T) {
	p := DefaultParams()
	a := NewCalibration(Variant1K, p)
	if a.Connected != 480 || a.Off != 5440 || a.On != 6400 || a.ReadingInit != 482 || a.OffsetInit != 512 {
		t.Errorf("1K calibration %+v", a)
	}
	b := NewCalibration(Variant4K7, p)
	if b.Connected != 112 || b.Off != 1248 || b.On != 1472 || b.ReadingInit != 1016 || b.OffsetInit != 1023 {
		t.Errorf("4K7 calibration %+v", b)
	}
	if NewCalibration(Variant1K, p) != a {
		t.Error("calibration is not deterministic")
	}
}

func TestLevelLines(t *testing.T) {
	tests := []struct {
		level Level
		a, b  bool
	}{
		{LevelOff, false, false},
		{LevelApproaching, true, false},
		{LevelOn, false, true},
		{LevelSaturated, true, true},
	}
	for _, tt := range tests {
		a, b := tt.level.Lines()
		if a != tt.a || b != tt.b {
			t.Errorf("%s.Lines() = (%v, %v), want (%v, %v)", tt.level, a, b, tt.a, tt.b)
		}
		if got := LevelFromLines(a, b); got != tt.level {
			t.Errorf("LevelFromLines(%v, %v) = %s", a, b, got)
		}
	}
}

func TestRouteString(t *testing.T) {
	if RouteFanOffset.String() != "fan-offset" {
		t.Errorf("got %s", RouteFanOffset)
	}
	if Route(99).String() != "route(99)" {
		t.Errorf("got %s", Route(99))
	}
}
