// Package logging provides the structured loggers used across the service.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper of zap.SugaredLogger.
type Logger = *zap.SugaredLogger

// Field is a wrapper of zap.Field.
type Field = zap.Field

var (
	defaultLogger Logger
	loggerOnce    sync.Once

	mu        sync.RWMutex
	logLevel  = zapcore.InfoLevel
	logFormat = "console"
)

// SetLogLevel sets the level of every logger created afterwards. Valid levels
// are debug, info, warn and error.
func SetLogLevel(level string) error {
	var parsed zapcore.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		parsed = zapcore.DebugLevel
	case "info", "":
		parsed = zapcore.InfoLevel
	case "warn":
		parsed = zapcore.WarnLevel
	case "error":
		parsed = zapcore.ErrorLevel
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}

	mu.Lock()
	logLevel = parsed
	mu.Unlock()
	return nil
}

// SetLogFormat switches between the human console encoder and JSON lines.
func SetLogFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "":
		format = "console"
	case "json":
		format = "json"
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	mu.Lock()
	logFormat = format
	mu.Unlock()
	return nil
}

// New creates a named logger carrying the given fields.
func New(name string, fields ...Field) Logger {
	logger := newLogger(name)

	if len(fields) > 0 {
		args := make([]interface{}, len(fields))
		for i, field := range fields {
			args[i] = field
		}
		logger = logger.With(args...)
	}

	return logger
}

// NewField creates a string field.
func NewField(key string, value string) Field {
	return zap.String(key, value)
}

// DefaultLogger returns the process wide logger.
func DefaultLogger() Logger {
	loggerOnce.Do(func() {
		defaultLogger = newLogger("default")
	})
	return defaultLogger
}

// Enabled reports whether the given level is currently logged.
func Enabled(level zapcore.Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= logLevel
}

func newLogger(name string) Logger {
	mu.RLock()
	level, format := logLevel, logFormat
	mu.RUnlock()

	encoder := zapcore.NewConsoleEncoder(humanEncoderConfig())
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	}

	return zap.New(
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
		zap.AddStacktrace(zap.ErrorLevel),
	).Named(name).Sugar()
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func humanEncoderConfig() zapcore.EncoderConfig {
	cfg := encoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}
