package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/irsensor/internal/config"
	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/logic"
	"github.com/sweeney/irsensor/internal/mqtt"
	"github.com/sweeney/irsensor/internal/runtime"
	"github.com/sweeney/irsensor/internal/sim"
	"github.com/sweeney/irsensor/internal/status"
	"github.com/sweeney/irsensor/internal/telemetry"
	"github.com/sweeney/irsensor/internal/web"
)

// simStep is how often the simulated environment advances.
const simStep = 50 * time.Millisecond

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sensor daemon on the configured hardware.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return a.daemon(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("backend", "", "hardware backend: sim, gpiocdev or rpio")
	cmd.Flags().String("watchdog", "", "kernel watchdog device, e.g. /dev/watchdog")
	a.bind(cmd.Flags(), map[string]string{
		"backend":  "hardware.backend",
		"watchdog": "watchdog.device",
	})
	return cmd
}

func (a *app) simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the sensor daemon against a simulated board.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg.Hardware.Backend = config.BackendSim
			cfg.Watchdog.Device = ""
			return a.daemon(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.Float64("distance", 10, "target distance in mm")
	f.Float64("temperature", 25, "thermistor temperature in C")
	f.Bool("disconnected", false, "simulate an open thermistor")
	f.Duration("sweep-period", 0, "move the target back and forth with this period (0 holds --distance)")
	f.String("mode", "differential", "mode input: differential or simple")
	f.String("variant", "1K", "series resistor: 1K or 4K7")
	a.bind(f, map[string]string{
		"distance":     "sim.distance_mm",
		"temperature":  "sim.temperature_c",
		"disconnected": "sim.disconnected",
		"sweep-period": "sim.sweep_period",
		"mode":         "sim.mode",
		"variant":      "sim.variant",
	})
	return cmd
}

func (a *app) printStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print-state",
		Short: "Cold start the sensor, run it briefly and print the output and fan state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			log := a.newLogger(cfg)
			defer log.Sync()

			h, err := openHardware(cfg, log)
			if err != nil {
				return err
			}
			defer h.Close()

			d, _ := cmd.Flags().GetDuration("duration")
			return printState(cmd.Context(), cmd.OutOrStdout(), cfg.Params(), h, d)
		},
	}
	cmd.Flags().Duration("duration", 250*time.Millisecond, "how long to run before printing")
	return cmd
}

// daemon opens the hardware and publisher and serves until SIGINT or SIGTERM.
func (a *app) daemon(ctx context.Context, cfg *config.Config) error {
	log := a.newLogger(cfg)
	defer log.Sync()
	a.watchConfig(log)

	h, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer h.Close()

	pub := newPublisher(cfg, log)
	defer pub.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	return serve(ctx, cfg, log, h, pub, sig)
}

// nopPublisher stands in when MQTT is disabled.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error            { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }

func newPublisher(cfg *config.Config, log *zap.Logger) mqtt.Publisher {
	if cfg.MQTT.Broker == "" {
		log.Info("mqtt disabled")
		return nopPublisher{}
	}
	return mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.BufferSize,
		Logger:     log,
	})
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Backend:            cfg.Hardware.Backend,
		Broker:             cfg.MQTT.Broker,
		HTTPAddr:           cfg.HTTP.Addr,
		InterruptHz:        cfg.InterruptHz(),
		CyclesAveraged:     cfg.Sensor.CyclesAveraged,
		FanSamplesAveraged: cfg.Sensor.FanSamplesAveraged,
		LoopMs:             cfg.Sensor.LoopInterval.Milliseconds(),
		DebounceMs:         cfg.Events.Debounce.Milliseconds(),
		HeartbeatMs:        cfg.Events.Heartbeat.Milliseconds(),
	}
}

func openTelemetry(cfg *config.Config, log *zap.Logger) (telemetry.Sink, error) {
	if cfg.Serial.Port == "" {
		return telemetry.Discard{}, nil
	}
	s, err := telemetry.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		return nil, err
	}
	log.Info("serial telemetry enabled", zap.String("port", cfg.Serial.Port), zap.Int("baud", cfg.Serial.Baud))
	return s, nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// serve wires the supervisor to its outputs and runs it until a signal
// arrives or it fails.
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, h *hardware, pub mqtt.Publisher, sig <-chan os.Signal) error {
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	sink, err := openTelemetry(cfg, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	deps := runtime.Deps{
		Board:     h.board,
		ADC:       h.adc,
		Watchdog:  h.wd,
		Publisher: pub,
		Tracker:   tracker,
		Sink:      sink,
		Network:   readNetworkInfo,
		Log:       log,
	}
	if c, ok := pub.(mqtt.ConnectionStatus); ok {
		deps.Conn = c
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
		deps.Feed = srv
	}

	sup, err := runtime.New(runtime.Options{
		Params:          cfg.Params(),
		Loop:            cfg.Sensor.LoopInterval,
		Debounce:        cfg.Events.Debounce,
		Heartbeat:       cfg.Events.Heartbeat,
		WatchdogTimeout: cfg.Watchdog.Timeout,
	}, deps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if h.sim != nil {
		var sweep *sim.Sweep
		if s := cfg.Sweep(); s.Period > 0 {
			sweep = &s
		}
		go h.sim.Run(ctx, simStep, sweep)
	}

	sup.Startup()
	log.Info("started",
		zap.String("backend", cfg.Hardware.Backend),
		zap.Int("interrupt_hz", cfg.InterruptHz()),
		zap.Duration("loop", cfg.Sensor.LoopInterval),
		zap.Duration("debounce", cfg.Events.Debounce),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("heartbeat", cfg.Events.Heartbeat))

	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	select {
	case s := <-sig:
		log.Info("received signal, shutting down", zap.Stringer("signal", s))
		cancel()
		err := <-errCh
		sup.Shutdown(signalName(s))
		return err
	case err := <-errCh:
		return err
	}
}

// printState cold starts a device, runs it for d and prints the result.
func printState(ctx context.Context, out io.Writer, p logic.Params, h *hardware, d time.Duration) error {
	dev, err := logic.NewDevice(p, h.board, h.adc, h.watchdog(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	timerDone := make(chan struct{})
	go func() {
		hw.NewTimer(p.InterruptHz).Run(ctx, dev.Interrupt)
		close(timerDone)
	}()
	defer func() { <-timerDone }()

	pace := time.NewTicker(time.Millisecond)
	defer pace.Stop()
	if err := dev.Settle(ctx, pace.C); err != nil {
		return fmt.Errorf("sensor did not settle: %w", err)
	}

	var last logic.StepResult
	var fan logic.FanDecision
	dev.Sensor.Run(ctx, pace.C, func(r logic.StepResult) {
		last = r
		if r.Fan != nil {
			fan = *r.Fan
		}
	})

	mode := "simple"
	if last.Differential {
		mode = "differential"
	}
	fmt.Fprintf(out, "Level: %s, Fan: %s, Mode: %s, Variant: %s\n", last.Level, onOff(fan.On), mode, dev.Variant())
	fmt.Fprintf(out, "Near: %d, Far: %d, Off: %d, Thermistor: %d\n", last.Sums.Near, last.Sums.Far, last.Sums.Off, fan.Diff)
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
