package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "resto-ops-services"

// New builds the service logger. level overrides the environment default
// when it parses ("debug", "warn", ...).
func New(env string, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "development" || env == "local" || env == "test" {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": serviceName, "env": env}
	return cfg.Build()
}
