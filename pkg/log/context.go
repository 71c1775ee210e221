package log

import (
	"context"
	"os"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger Logger = Nop()
)

// SetDefault replaces the process-wide logger
func SetDefault(logger Logger) {
	if logger == nil {
		logger = Nop()
	}
	mu.Lock()
	defaultLogger = logger
	mu.Unlock()
}

// Default returns the process-wide logger
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Component returns the default logger tagged with a component name
func Component(name string) Logger {
	return Default().With(String(FieldComponent, name))
}

type contextKey string

const (
	loggerContextKey    contextKey = "logger"
	requestIDContextKey contextKey = "request_id"
)

// FromContext extracts a logger from the context, or returns the default logger.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerContextKey).(Logger); ok {
		return logger
	}
	return Default()
}

// ToContext adds a logger to the context.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// WithRequestID stores the request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFrom returns the request id stored in ctx
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// Nop returns a logger that discards every entry. Fatal still exits.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)               {}
func (nopLogger) Info(string, ...Field)                {}
func (nopLogger) Warn(string, ...Field)                {}
func (nopLogger) Error(string, ...Field)               {}
func (nopLogger) Fatal(string, ...Field)               { os.Exit(1) }
func (l nopLogger) With(...Field) Logger               { return l }
func (l nopLogger) WithContext(context.Context) Logger { return l }
