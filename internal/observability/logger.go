package observability

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// zerologLogger implements Logger on top of zerolog with JSON output
// suitable for log aggregation systems.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewLogger creates a structured JSON logger from the given configuration.
// Service name and environment are attached to every entry.
func NewLogger(cfg Config) Logger {
	out := cfg.LogOutput
	if out == nil {
		out = os.Stdout
	}

	zl := zerolog.New(out).
		Level(parseLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger()

	return &zerologLogger{zl: zl}
}

// NewNopLogger returns a Logger that discards everything. Intended for tests.
func NewNopLogger() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}

func (l *zerologLogger) Info(ctx context.Context, msg string, fields Fields) {
	withFields(l.zl.Info(), fields).Msg(msg)
}

func (l *zerologLogger) Warn(ctx context.Context, msg string, fields Fields) {
	withFields(l.zl.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	withFields(l.zl.Error().Err(err), fields).Msg(msg)
}

func (l *zerologLogger) Debug(ctx context.Context, msg string, fields Fields) {
	withFields(l.zl.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) WithFields(fields Fields) Logger {
	zctx := l.zl.With()
	for k, v := range fields {
		zctx = zctx.Interface(k, v)
	}
	return &zerologLogger{zl: zctx.Logger()}
}

func withFields(e *zerolog.Event, fields Fields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
