// Package logging builds the process-wide zap logger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel converts a level name to a zap level, falling back to info.
func ParseLevel(levelStr string) (zapcore.Level, bool) {
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return level, true
}

// New returns a logger writing to stderr. The console encoder is used for
// interactive (verbose) runs, JSON otherwise.
func New(levelStr string, console bool) *zap.Logger {
	level, ok := ParseLevel(levelStr)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if console {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	logger := zap.New(core)
	if !ok && levelStr != "" {
		logger.Warn("invalid log level, defaulting to info", zap.String("level", levelStr))
	}
	return logger
}

// Init builds a logger and installs it as the zap global.
func Init(levelStr string, console bool) *zap.Logger {
	logger := New(levelStr, console)
	zap.ReplaceGlobals(logger)
	return logger
}
