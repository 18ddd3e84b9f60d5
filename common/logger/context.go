package logger

import (
	"context"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// GetTraceID 从 context 中获取 traceId，ctx 为空时返回空串
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// WithTraceID 将 traceId 注入到 context 中，空 traceId 原样返回
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}
