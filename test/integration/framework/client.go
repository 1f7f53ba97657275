//go:build integration
// +build integration

// APIClient 基于 resty 封装的 HTTP 客户端，直接复用业务结构体
package framework

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/coursebot/backend/internal/application/ingest"
	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/interfaces/http/handler"
)

// APIClient 测试用 HTTP 客户端
// 每个客户端有独立的 Cookie Jar，相当于一个浏览器
type APIClient struct {
	client  *resty.Client
	baseURL string
}

// NewAPIClient 创建测试用 HTTP 客户端
func NewAPIClient(baseURL string) *APIClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)

	return &APIClient{
		client:  client,
		baseURL: baseURL,
	}
}

// AsInstructor 携带教师令牌
func (c *APIClient) AsInstructor(token string) *APIClient {
	c.client.SetAuthToken(token)
	return c
}

// AsIdentity 携带调用方身份
func (c *APIClient) AsIdentity(identity string) *APIClient {
	c.client.SetHeader("X-User-ID", identity)
	return c
}

// --- 通用响应结构 ---

// APIResponse 通用 API 响应（复用 response.Response 与 response.ErrorResponse 的 JSON 结构）
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Data    T      `json:"data,omitempty"`

	StatusCode int `json:"-"`
}

// do 执行请求并统一处理成功/错误响应的 JSON 解析
// resty 的 SetResult 仅在 2xx 时解析，SetError 在 4xx/5xx 时解析
func do[T any](r *resty.Request, result *APIResponse[T]) *resty.Request {
	return r.SetResult(result).SetError(result)
}

func finish[T any](resp *resty.Response, err error, result *APIResponse[T]) (*APIResponse[T], error) {
	if err != nil {
		return nil, err
	}
	result.StatusCode = resp.StatusCode()
	return result, nil
}

// HealthCheck 健康检查
func (c *APIClient) HealthCheck() error {
	resp, err := c.client.R().Get("/health")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode())
	}
	return nil
}

// --- 课程资料 ---

// UploadFile 待上传文件
type UploadFile struct {
	Name    string
	Content []byte
}

// Upload 上传课程资料
func (c *APIClient) Upload(files ...UploadFile) (*APIResponse[handler.UploadResponse], error) {
	var result APIResponse[handler.UploadResponse]
	r := c.client.R()
	for _, f := range files {
		r.SetFileReader("files", f.Name, bytes.NewReader(f.Content))
	}
	resp, err := do(r, &result).Post("/api/v1/documents")
	return finish(resp, err, &result)
}

// UpdateText 以纯文本替换课程资料
func (c *APIClient) UpdateText(name, content string) (*APIResponse[ingest.Result], error) {
	var result APIResponse[ingest.Result]
	resp, err := do(c.client.R().SetMultipartFormData(map[string]string{"content": content}), &result).
		Put("/api/v1/documents/" + url.PathEscape(name))
	return finish(resp, err, &result)
}

// ListDocuments 课程资料列表
func (c *APIClient) ListDocuments() (*APIResponse[[]document.SourceSummary], error) {
	var result APIResponse[[]document.SourceSummary]
	resp, err := do(c.client.R(), &result).Get("/api/v1/documents")
	return finish(resp, err, &result)
}

// DeleteDocument 删除课程资料
func (c *APIClient) DeleteDocument(name string) (*APIResponse[handler.DeleteResponse], error) {
	var result APIResponse[handler.DeleteResponse]
	resp, err := do(c.client.R(), &result).Delete("/api/v1/documents/" + url.PathEscape(name))
	return finish(resp, err, &result)
}

// Search 检索课程资料
func (c *APIClient) Search(query string, k int) (*APIResponse[handler.SearchResponse], error) {
	var result APIResponse[handler.SearchResponse]
	resp, err := do(c.client.R().SetBody(handler.SearchRequest{Query: query, K: k}), &result).
		Post("/api/v1/search")
	return finish(resp, err, &result)
}

// --- 问答 ---

// AskData POST /chat/ask 响应 data
type AskData struct {
	ConversationID string              `json:"conversation_id"`
	Transcript     []conversation.Turn `json:"transcript"`
	Refused        bool                `json:"refused"`
}

// Ask 提问
func (c *APIClient) Ask(req handler.AskRequest) (*APIResponse[AskData], error) {
	var result APIResponse[AskData]
	resp, err := do(c.client.R().SetBody(req), &result).Post("/api/v1/chat/ask")
	return finish(resp, err, &result)
}

// Transcript 对话记录
func (c *APIClient) Transcript(conversationID string) (*APIResponse[handler.TranscriptResponse], error) {
	var result APIResponse[handler.TranscriptResponse]
	resp, err := do(c.client.R(), &result).Get("/api/v1/chat/conversations/" + url.PathEscape(conversationID))
	return finish(resp, err, &result)
}

// UsageCookie 当前保存的用量 Cookie
func (c *APIClient) UsageCookie() *http.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil || c.client.GetClient().Jar == nil {
		return nil
	}
	for _, ck := range c.client.GetClient().Jar.Cookies(u) {
		if ck.Name == "chat_usage" {
			return ck
		}
	}
	return nil
}
