// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context and provides
// request ID propagation through context.Context.
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// NewRequestID mints a fresh request ID for an inbound call.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID stores a request ID in the context for downstream propagation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from context. Returns "" if not set.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequest returns slog attributes including the request ID from context.
// Usage: slog.Info("msg", logger.WithRequest(ctx)...)
func WithRequest(ctx context.Context) []any {
	id := RequestID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("request_id", id)}
}
