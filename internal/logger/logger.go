package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide sugared logger. It starts as a no-op so that
// packages logging before Initialize is called never panic.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize builds the global logger. JSON output is for machine
// consumption; otherwise a human-readable console encoder is used.
func Initialize(jsonOutput bool) error {
	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = cfg.Build()
	} else {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger, err = cfg.Build()
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	_ = Logger.Sync()
}
