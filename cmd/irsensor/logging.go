package main

import (
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/irsensor/internal/config"
)

func selectZapLevel(loglevel string) zapcore.Level {
	switch loglevel {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	}
	return zap.InfoLevel
}

// newLogger builds the process logger on the shared atomic level: JSON to
// stderr, or console output with --debug.
func (a *app) newLogger(cfg *config.Config) *zap.Logger {
	a.atom.SetLevel(selectZapLevel(cfg.LogLevel))

	var enc zapcore.Encoder
	if a.v.GetBool("debug") {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encoderCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), a.atom))
}

// watchConfig reloads the log level when the config file changes. Other
// settings need a restart.
func (a *app) watchConfig(log *zap.Logger) {
	path := a.v.GetString("config")
	if _, err := os.Stat(path); err != nil {
		return
	}
	w := viper.New()
	w.SetConfigFile(path)
	if err := w.ReadInConfig(); err != nil {
		log.Warn("config watch disabled", zap.String("file", path), zap.Error(err))
		return
	}
	w.OnConfigChange(func(e fsnotify.Event) { a.reload(e, log) })
	w.WatchConfig()
}

func (a *app) reload(e fsnotify.Event, log *zap.Logger) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	cfg, err := config.Load(e.Name)
	if err != nil {
		log.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
		return
	}
	a.applyOverrides(cfg)
	a.atom.SetLevel(selectZapLevel(cfg.LogLevel))
	log.Info("config changed", zap.String("file", e.Name), zap.String("log_level", cfg.LogLevel))
}
