// Package llm OpenAI 兼容的对话与内容审核客户端
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// Client LLM Chat 客户端
type Client struct {
	baseURL string
	apiKey  string
	http    *resty.Client
	logger  *slog.Logger
}

// Message Chat 消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest 一次补全调用的参数
type CompletionRequest struct {
	Model               string
	Turns               []conversation.Turn
	MaxCompletionTokens int
	Temperature         float64
	// User 上游用于滥用追踪的用户标识
	User string
}

// chatRequest Chat API 请求
type chatRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty"`
	N                   int       `json:"n"`
	Stop                []string  `json:"stop,omitempty"`
	Temperature         float64   `json:"temperature"`
	User                string    `json:"user,omitempty"`
}

// chatResponse Chat API 响应
type chatResponse struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type moderationRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type moderationResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// NewClient 创建 LLM 客户端
func NewClient(cfg *config.OpenAIConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.ChatTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  log.NewModuleLogger("llm", "client"),
	}
}

// toMessages 将对话轮次转换为接口消息，检索资料以 system 角色发送
func toMessages(turns []conversation.Turn) []Message {
	messages := make([]Message, 0, len(turns))
	for _, t := range turns {
		role := string(t.Role)
		if t.Role == conversation.RoleContext {
			role = string(conversation.RoleSystem)
		}
		messages = append(messages, Message{Role: role, Content: t.Content})
	}
	return messages
}

// Complete 发送完整对话并返回去除首尾空白的回复
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := chatRequest{
		Model:               req.Model,
		Messages:            toMessages(req.Turns),
		MaxCompletionTokens: req.MaxCompletionTokens,
		N:                   1,
		Stop:                []string{"\x00"},
		Temperature:         req.Temperature,
		User:                req.User,
	}

	c.logger.Debug("Sending chat completion request",
		"model", req.Model,
		"messages", len(body.Messages),
		"api_key", log.MaskSecret(c.apiKey),
	)

	var chatResp chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&chatResp).
		Post("/chat/completions")
	if err != nil {
		return "", classifyTransportError(err)
	}
	if resp.IsError() {
		return "", statusError(resp)
	}
	if len(chatResp.Choices) == 0 {
		return "", &conversation.UpstreamError{
			Kind:       conversation.UpstreamStatus,
			StatusCode: resp.StatusCode(),
			Err:        errors.New("LLM API returned no choices"),
		}
	}

	c.logger.Info("Chat completion successful",
		"model", req.Model,
		"finish_reason", chatResp.Choices[0].FinishReason,
		"tokens", chatResp.Usage.TotalTokens,
	)

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// Moderate 调用审核接口，返回输入是否被标记
func (c *Client) Moderate(ctx context.Context, model, input string) (bool, error) {
	var modResp moderationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(moderationRequest{Model: model, Input: input}).
		SetResult(&modResp).
		Post("/moderations")
	if err != nil {
		return false, classifyTransportError(err)
	}
	if resp.IsError() {
		return false, statusError(resp)
	}
	if len(modResp.Results) == 0 {
		return false, fmt.Errorf("moderation API returned an unexpected response: no results")
	}

	flagged := modResp.Results[0].Flagged
	if flagged {
		c.logger.Info("Input flagged by moderation", "model", model)
	}
	return flagged, nil
}

// TestConnection 测试 LLM API 连接
func (c *Client) TestConnection(ctx context.Context, model string) error {
	c.logger.Debug("Testing LLM connection",
		"base_url", c.baseURL,
		"model", model,
	)

	_, err := c.Complete(ctx, CompletionRequest{
		Model:               model,
		Turns:               []conversation.Turn{{Role: conversation.RoleUser, Content: "Reply with OK."}},
		MaxCompletionTokens: 5,
	})
	if err != nil {
		return fmt.Errorf("LLM connection test failed: %w", err)
	}

	c.logger.Info("LLM connection test successful", "model", model)
	return nil
}

// classifyTransportError 网络层失败与超时统一归为连接类错误，调用方主动取消则原样返回
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &conversation.UpstreamError{Kind: conversation.UpstreamConnection, Err: err}
}

func statusError(resp *resty.Response) error {
	kind := conversation.UpstreamStatus
	if resp.StatusCode() == http.StatusTooManyRequests {
		kind = conversation.UpstreamRateLimit
	}
	body := resp.String()
	if len(body) > 512 {
		body = body[:512]
	}
	return &conversation.UpstreamError{
		Kind:       kind,
		StatusCode: resp.StatusCode(),
		Err:        fmt.Errorf("LLM API returned status %d: %s", resp.StatusCode(), strings.TrimSpace(body)),
	}
}
