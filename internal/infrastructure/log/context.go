package log

import (
	"context"
	"log/slog"
)

type contextKey string

// 上下文键定义
const (
	// RequestContextID HTTP 请求 ID
	RequestContextID contextKey = "request_id"

	// IdentityContextID 调用方身份
	IdentityContextID contextKey = "identity"

	// ConversationContextID 对话 ID
	ConversationContextID contextKey = "conversation_id"

	// SourceContextID 课程文档名
	SourceContextID contextKey = "source_name"
)

// WithRequestID 在上下文中添加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithIdentity 在上下文中添加调用方身份
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, IdentityContextID, identity)
}

// WithConversationID 在上下文中添加对话 ID
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationContextID, conversationID)
}

// WithSourceName 在上下文中添加文档名
func WithSourceName(ctx context.Context, sourceName string) context.Context {
	return context.WithValue(ctx, SourceContextID, sourceName)
}

// RequestIDFromContext 读取请求 ID
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(RequestContextID).(string)
	return v
}

// AttrsFromContext 从上下文中提取日志字段
func AttrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	for _, key := range []contextKey{RequestContextID, IdentityContextID, ConversationContextID, SourceContextID} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

// FromContext 返回附带上下文字段的 logger
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := AttrsFromContext(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return logger.With(args...)
}
