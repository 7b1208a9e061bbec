// Package dlogger builds the zap loggers used across privfs, from a level name
package dlogger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level names
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	// LogLevelNone disables logging
	LogLevelNone = "none"
)

// GetLogger returns a JSON logger at the given level, named "privfs".
//
// Timestamps are ISO8601 and stack traces are only attached to errors.
func GetLogger(level string) (*zap.Logger, error) {
	if level == LogLevelNone {
		return zap.NewNop(), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}
	return l.Named("privfs"), nil
}

// MustGetLogger is GetLogger, panicking on an unknown level
func MustGetLogger(level string) *zap.Logger {
	l, err := GetLogger(level)
	if err != nil {
		panic(err)
	}
	return l
}
