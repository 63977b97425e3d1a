// Package logger provides the structured logging contract used across crudkit and its
// zap-backed implementation.
package logger

import "context"

// Logger defines the structured logging interface.
// All log methods accept a message followed by key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that adds the key-value pairs to every entry
	With(args ...any) Logger

	// WithContext returns a child logger carrying the request ID found in ctx, if any
	WithContext(ctx context.Context) Logger
}

// RequestIDKey is the context key under which the request ID is stored.
const RequestIDKey = "request_id"
