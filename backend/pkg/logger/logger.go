package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger used when a component is not handed one explicitly
var Logger *zap.Logger

// Init builds the process logger for the given environment
func Init(env string) error {
	l, err := New(env)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// New builds a logger without touching the global instance.
// Production emits JSON at Info; everything else is colored console output at Debug.
func New(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns the process logger, falling back to a development logger
func Get() *zap.Logger {
	if Logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return Logger
}

// OrDefault returns l unless it is nil, in which case the process logger is used.
// Components call this in their constructors so tests can inject zaptest loggers.
func OrDefault(l *zap.Logger, component string) *zap.Logger {
	if l == nil {
		l = Get()
	}
	return l.Named(component)
}
