// Command irsensor runs the dual-mode IR endstop sensor core on a Raspberry Pi
// or on a simulated board, and publishes output and fan changes to MQTT.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sweeney/irsensor/internal/config"
)

var version = "dev"

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "/etc/irsensor.yaml"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by the subcommands: flag/env bindings and the
// log level that config reloads adjust.
type app struct {
	v    *viper.Viper
	atom zap.AtomicLevel
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("IRSENSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &app{v: v, atom: zap.NewAtomicLevel()}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := newApp()
	root := &cobra.Command{
		Use:          "irsensor",
		Short:        "Dual-mode IR endstop sensor with thermistor fan control",
		SilenceUsage: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("config", DefaultConfigPath, "config file path")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.Bool("debug", false, "human-readable development logging")
	pf.String("broker", "", `MQTT broker address ("" disables MQTT)`)
	pf.String("http", "", `HTTP status address ("" disables the server)`)
	pf.String("serial", "", "serial port for CSV telemetry")
	a.bind(pf, map[string]string{
		"config":    "config",
		"log-level": "log_level",
		"debug":     "debug",
		"broker":    "mqtt.broker",
		"http":      "http.addr",
		"serial":    "serial.port",
	})

	root.AddCommand(
		a.runCmd(),
		a.simulateCmd(),
		a.printStateCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

// bind maps flag names to config keys so flags and IRSENSOR_* variables
// override the file.
func (a *app) bind(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// loadConfig reads the config file and applies flag and environment
// overrides.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	a.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (a *app) applyOverrides(cfg *config.Config) {
	v := a.v
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("log_level", &cfg.LogLevel)
	str("mqtt.broker", &cfg.MQTT.Broker)
	str("mqtt.client_id", &cfg.MQTT.ClientID)
	str("http.addr", &cfg.HTTP.Addr)
	str("serial.port", &cfg.Serial.Port)
	str("hardware.backend", &cfg.Hardware.Backend)
	str("watchdog.device", &cfg.Watchdog.Device)
	str("sim.mode", &cfg.Sim.Mode)
	str("sim.variant", &cfg.Sim.Variant)

	if v.IsSet("serial.baud") {
		cfg.Serial.Baud = v.GetInt("serial.baud")
	}
	if v.IsSet("events.debounce") {
		cfg.Events.Debounce = v.GetDuration("events.debounce")
	}
	if v.IsSet("events.heartbeat") {
		cfg.Events.Heartbeat = v.GetDuration("events.heartbeat")
	}
	if v.IsSet("sensor.loop_interval") {
		cfg.Sensor.LoopInterval = v.GetDuration("sensor.loop_interval")
	}
	if v.IsSet("sim.distance_mm") {
		cfg.Sim.DistanceMM = v.GetFloat64("sim.distance_mm")
	}
	if v.IsSet("sim.temperature_c") {
		cfg.Sim.TemperatureC = v.GetFloat64("sim.temperature_c")
	}
	if v.IsSet("sim.disconnected") {
		cfg.Sim.Disconnected = v.GetBool("sim.disconnected")
	}
	if v.IsSet("sim.sweep_period") {
		cfg.Sim.SweepPeriod = v.GetDuration("sim.sweep_period")
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("write"); path != "" {
				if err := cfg.Save(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String("write", "", "save the effective configuration to this file")
	return cmd
}
