package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/irsensor/internal/config"
	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/sim"
)

// hardware is the opened board, converter and optional kernel watchdog.
type hardware struct {
	board   hw.Board
	adc     hw.ADC
	sim     *sim.Board // nil on real hardware
	wd      hw.Watchdog
	closers []func() error
}

type nopWatchdog struct{}

func (nopWatchdog) Kick() {}

func openHardware(cfg *config.Config, log *zap.Logger) (*hardware, error) {
	h := &hardware{}
	switch cfg.Hardware.Backend {
	case config.BackendSim:
		b := sim.New(cfg.SimBoard())
		h.board, h.adc, h.sim = b, b, b

	case config.BackendGPIOCdev, config.BackendRPIO:
		board, err := openBoard(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		h.board = board
		h.closers = append(h.closers, board.Close)

		adc, err := hw.OpenADS1115(cfg.Hardware.ADCBus, cfg.Hardware.ADCAddr, log)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("init adc: %w", err)
		}
		h.adc = adc
		h.closers = append(h.closers, adc.Close)

	default:
		return nil, fmt.Errorf("unknown hardware backend %q", cfg.Hardware.Backend)
	}

	if dev := cfg.Watchdog.Device; dev != "" {
		wd, err := hw.OpenDevWatchdog(dev)
		if err != nil {
			h.Close()
			return nil, err
		}
		h.wd = wd
		h.closers = append(h.closers, wd.Close)
	}
	return h, nil
}

func openBoard(cfg *config.Config, log *zap.Logger) (hw.Board, error) {
	if cfg.Hardware.Backend == config.BackendRPIO {
		b, err := hw.NewRpioBoard(cfg.PinMap())
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	b, err := hw.NewCdevBoard(cfg.PinMap(), log)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// watchdog returns the kernel watchdog, or one that ignores kicks.
func (h *hardware) watchdog() hw.Watchdog {
	if h.wd == nil {
		return nopWatchdog{}
	}
	return h.wd
}

// Close releases everything in reverse order of opening.
func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
