package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "prod" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	return config.Build()
}

func NewSugar(env string) (*zap.SugaredLogger, error) {
	logger, err := NewLogger(env)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Named returns a child logger tagged with the component name.
func Named(logger *zap.SugaredLogger, component string) *zap.SugaredLogger {
	return logger.Named(component).With("component", component)
}

// WarnFunc adapts a sugared logger to the func(msg, keysAndValues...) hook
// shape used by storage backends.
func WarnFunc(logger *zap.SugaredLogger) func(msg string, fields ...any) {
	return func(msg string, fields ...any) {
		logger.Warnw(msg, fields...)
	}
}
