// Package logger defines the structured logging contract used by every component.
package logger

import (
	"context"
)

// Logger is a structured logger. Log methods take a message followed by key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that adds the key/value pairs to every entry.
	With(args ...any) Logger

	// WithContext returns a child logger carrying the request and trace ids found in ctx.
	WithContext(ctx context.Context) Logger
}

type contextKey int

const (
	loggerContextKey contextKey = iota
	requestIDContextKey
)

// ContextWithLogger stores log in ctx.
func ContextWithLogger(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, log)
}

// FromContext returns the logger stored in ctx, or fallback.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if ctx != nil {
		if log, ok := ctx.Value(loggerContextKey).(Logger); ok && log != nil {
			return log
		}
	}
	if fallback == nil {
		return Nop()
	}
	return fallback
}

// ContextWithRequestID stores a request id picked up by WithContext.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext returns the request id stored in ctx.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

type nopLogger struct{}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any)                  {}
func (nopLogger) Info(string, ...any)                   {}
func (nopLogger) Warn(string, ...any)                   {}
func (nopLogger) Error(string, ...any)                  {}
func (n nopLogger) With(...any) Logger                  { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
