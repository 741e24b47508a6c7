package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	fieldsKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithFields attaches fields that every FromCtx logger for ctx carries.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	prev, _ := ctx.Value(fieldsKey).([]zap.Field)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey, merged)
}

// FromCtx returns the global logger annotated with the request id and any
// fields attached through WithFields.
func FromCtx(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if reqID := RequestIDFrom(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if extra, ok := ctx.Value(fieldsKey).([]zap.Field); ok {
		fields = append(fields, extra...)
	}
	if len(fields) == 0 {
		return L()
	}
	return L().With(fields...)
}

// Layer is the per-call logger used across services and repositories.
func Layer(ctx context.Context, layer, method string, fields ...zap.Field) *zap.Logger {
	base := []zap.Field{zap.String("layer", layer), zap.String("method", method)}
	return FromCtx(ctx).With(append(base, fields...)...)
}
