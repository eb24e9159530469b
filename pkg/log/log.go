// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across parami-core. Key-value pairs
// follow the zap sugared convention.
type Logger interface {
	Debug(msg string, kvs ...interface{})
	Info(msg string, kvs ...interface{})
	Warn(msg string, kvs ...interface{})
	Error(msg string, kvs ...interface{})
	With(kvs ...interface{}) Logger
	Sync() error
}

type zapLogger struct {
	log *zap.SugaredLogger
}

// New creates a logger at info level.
func New() Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a logger with the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func NewWithLevel(level string) Logger {
	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		return &noOpLogger{}
	}
	return &zapLogger{log: l.Sugar()}
}

// NewNamed creates an info-level logger tagged with a component name.
func NewNamed(name string) Logger {
	return NewWithLevel("info").With("component", name)
}

// NoOp returns a logger that discards everything.
func NoOp() Logger {
	return &noOpLogger{}
}

// NoLog is a shared no-op logger instance for tests.
var NoLog = NoOp()

func (l *zapLogger) Debug(msg string, kvs ...interface{}) { l.log.Debugw(msg, kvs...) }
func (l *zapLogger) Info(msg string, kvs ...interface{})  { l.log.Infow(msg, kvs...) }
func (l *zapLogger) Warn(msg string, kvs ...interface{})  { l.log.Warnw(msg, kvs...) }
func (l *zapLogger) Error(msg string, kvs ...interface{}) { l.log.Errorw(msg, kvs...) }

func (l *zapLogger) With(kvs ...interface{}) Logger {
	return &zapLogger{log: l.log.With(kvs...)}
}

func (l *zapLogger) Sync() error { return l.log.Sync() }

type noOpLogger struct{}

func (n *noOpLogger) Debug(msg string, kvs ...interface{}) {}
func (n *noOpLogger) Info(msg string, kvs ...interface{})  {}
func (n *noOpLogger) Warn(msg string, kvs ...interface{})  {}
func (n *noOpLogger) Error(msg string, kvs ...interface{}) {}
func (n *noOpLogger) With(kvs ...interface{}) Logger       { return n }
func (n *noOpLogger) Sync() error                          { return nil }
