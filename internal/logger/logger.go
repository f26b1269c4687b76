package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. encoding is "json" or "console"; an
// unparsable level falls back to info.
func New(level string, encoding string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(encoding, "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// ForEnv picks console output for development and JSON everywhere else.
func ForEnv(appEnv string, level string) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(appEnv), "development") {
		if strings.TrimSpace(level) == "" {
			level = "debug"
		}
		return New(level, "console")
	}
	return New(level, "json")
}
