// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)

	if path := DocumentFromContext(ctx); path != "" {
		fields = append(fields, zap.String("document.path", path))
	}

	if mode := ModeFromContext(ctx); mode != "" {
		fields = append(fields, zap.String("run.mode", mode))
	}

	return fields
}

// Context key types
type documentCtxKey struct{}
type modeCtxKey struct{}
type loggerCtxKey struct{}

// WithDocument records the path of the document being validated.
// An empty path leaves ctx unchanged.
func WithDocument(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, documentCtxKey{}, path)
}

// DocumentFromContext returns the document path, or "" if none.
func DocumentFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(documentCtxKey{}).(string); ok {
		return p
	}
	return ""
}

// WithMode records how the run was started: "path", "changed" or "watch".
func WithMode(ctx context.Context, mode string) context.Context {
	if mode == "" {
		return ctx
	}
	return context.WithValue(ctx, modeCtxKey{}, mode)
}

// ModeFromContext returns the run mode, or "" if none.
func ModeFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(modeCtxKey{}).(string); ok {
		return m
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
