package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// NewContextWithLogger returns ctx carrying log. The HTTP layer uses it to
// hand a logger with request fields down to the services.
func NewContextWithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger carried by ctx, or fallback if there is none.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// WithFields extends the logger carried by ctx. A context without a logger
// is returned unchanged.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	l, ok := ctx.Value(contextKey{}).(*zap.Logger)
	if !ok || l == nil {
		return ctx
	}
	return NewContextWithLogger(ctx, l.With(fields...))
}
