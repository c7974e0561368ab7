package logger

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// ContextWithLogger returns a copy of ctx carrying l.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.NewNop()
	}
	l, ok := ctx.Value(loggerKey{}).(*zap.Logger)
	if !ok || l == nil {
		return zap.NewNop()
	}
	return l
}

// With stores the context logger extended with fields. It returns the new
// context and the extended logger.
func With(ctx context.Context, fields ...zap.Field) (context.Context, *zap.Logger) {
	l := FromContext(ctx).With(fields...)
	return ContextWithLogger(ctx, l), l
}
