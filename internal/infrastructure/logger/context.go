package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const loggerKey contextKey = "logger"

// WithContext attaches a logger to the context.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves the logger from context, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// ForSupplier returns a child logger scoped to one supplier sync run.
func ForSupplier(l *zap.Logger, supplierName, sessionID string) *zap.Logger {
	return l.With(
		zap.String("supplier", supplierName),
		zap.String("session_id", sessionID),
	)
}
