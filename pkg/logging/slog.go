package logging

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a log/slog handler chain (console, file fan-out) to Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps the handler.
func NewSlogLogger(h slog.Handler) *SlogLogger {
	return &SlogLogger{logger: slog.New(h)}
}

func (s *SlogLogger) emit(level slog.Level, msg string, fields []Field) {
	if !s.logger.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	s.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.emit(slog.LevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.emit(slog.LevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.emit(slog.LevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.emit(slog.LevelError, msg, fields) }

// With returns a logger with the fields attached to every record.
func (s *SlogLogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = slog.Any(f.Key, f.Value)
	}
	return &SlogLogger{logger: s.logger.With(args...)}
}

// Slog exposes the underlying slog.Logger.
func (s *SlogLogger) Slog() *slog.Logger {
	return s.logger
}
