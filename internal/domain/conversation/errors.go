package conversation

import (
	"errors"
	"fmt"
)

// 对话相关错误
var (
	// ErrEmptyInput 用户输入为空
	ErrEmptyInput = errors.New("the input content cannot be empty")
	// ErrQuotaExceeded 今日对话次数已用完
	ErrQuotaExceeded = errors.New("you have reached your daily chat limit, please try again tomorrow")
	// ErrModerationUnavailable 审核接口不可用，本轮被阻断
	ErrModerationUnavailable = errors.New("moderation service unavailable")
	// ErrUnknownPersona 未知的人设
	ErrUnknownPersona = errors.New("unknown persona")
	// ErrConversationNotFound 对话不存在
	ErrConversationNotFound = errors.New("conversation not found")
)

// UpstreamKind 上游失败类别
type UpstreamKind string

const (
	// UpstreamConnection 无法连接或超时，可重试
	UpstreamConnection UpstreamKind = "connection"
	// UpstreamRateLimit 被限流（429）
	UpstreamRateLimit UpstreamKind = "rate_limit"
	// UpstreamStatus 其他非 2xx 状态
	UpstreamStatus UpstreamKind = "status"
)

// UpstreamError 语言模型接口调用失败
type UpstreamError struct {
	Kind       UpstreamKind
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s error: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable 是否值得调用方稍后重试
func (e *UpstreamError) Retryable() bool {
	return e.Kind == UpstreamConnection || e.Kind == UpstreamRateLimit || e.StatusCode >= 500
}
