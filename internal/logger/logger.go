// Package logger provides the structured logger used across the dashboard
// services. It is a thin wrapper over log/slog with typed field constructors
// so call sites stay terse and allocation-light.
package logger

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Field is a single structured log attribute.
type Field = slog.Attr

// LogLevel controls the minimum level emitted by a Logger.
type LogLevel = slog.Level

const (
	LogLevelDebug LogLevel = slog.LevelDebug
	LogLevelInfo  LogLevel = slog.LevelInfo
	LogLevelWarn  LogLevel = slog.LevelWarn
	LogLevelError LogLevel = slog.LevelError
)

// Logger is the logging interface passed to services.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Options tunes handler construction.
type Options struct {
	// JSON selects the JSON handler instead of the default text handler.
	JSON bool
	// AddSource includes file:line of the log call site.
	AddSource bool
}

// NewSlogLogger creates a Logger writing to w at the given level.
// A nil opts selects the text handler without source locations.
func NewSlogLogger(w io.Writer, level LogLevel, opts *Options) Logger {
	if opts == nil {
		opts = &Options{}
	}
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return &slogLogger{l: slog.New(h)}
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *slogLogger) log(level slog.Level, msg string, fields []Field) {
	s.l.LogAttrs(context.Background(), level, msg, fields...)
}

func (s *slogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &slogLogger{l: s.l.With(args...)}
}

// Field constructors.

func String(key, value string) Field          { return slog.String(key, value) }
func Int(key string, value int) Field         { return slog.Int(key, value) }
func Int64(key string, value int64) Field     { return slog.Int64(key, value) }
func Uint64(key string, value uint64) Field   { return slog.Uint64(key, value) }
func Float64(key string, value float64) Field { return slog.Float64(key, value) }
func Bool(key string, value bool) Field       { return slog.Bool(key, value) }
func Time(key string, value time.Time) Field  { return slog.Time(key, value) }
func Any(key string, value any) Field         { return slog.Any(key, value) }

func Duration(key string, value time.Duration) Field {
	return slog.String(key, value.String())
}

// Error logs an error under the "error" key. A nil error renders as "<nil>".
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
