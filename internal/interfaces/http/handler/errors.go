package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/interfaces/http/response"
)

// errInvalidRequest 请求参数不合法
var errInvalidRequest = errors.New("invalid request")

// statusOf 错误到 HTTP 状态码的映射
func statusOf(err error) int {
	var upErr *conversation.UpstreamError
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, document.ErrUnsupportedFormat),
		errors.Is(err, document.ErrEmptyExtraction),
		errors.Is(err, document.ErrDuplicate),
		errors.Is(err, document.ErrNoContentProvided),
		errors.Is(err, document.ErrConflictingContent),
		errors.Is(err, conversation.ErrEmptyInput),
		errors.Is(err, conversation.ErrUnknownPersona):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrNotFound),
		errors.Is(err, conversation.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, conversation.ErrModerationUnavailable):
		return http.StatusBadGateway
	case errors.As(err, &upErr):
		switch {
		case upErr.Kind == conversation.UpstreamRateLimit:
			return http.StatusTooManyRequests
		case errors.Is(upErr, context.DeadlineExceeded):
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// writeError 统一的错误响应
// 服务端错误只在日志中保留原因，响应里不暴露内部细节
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusOf(err)
	l := log.FromContext(c.Request.Context(), logger)

	detail := err.Error()
	if status == http.StatusInternalServerError {
		l.Error("Request failed", "path", c.FullPath(), "error", err)
		detail = "internal error"
	} else {
		l.Warn("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	response.Fail(c, status, detail)
}

func badRequest(c *gin.Context, logger *slog.Logger, err error) {
	writeError(c, logger, fmt.Errorf("%w: %v", errInvalidRequest, err))
}
