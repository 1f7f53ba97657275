// Package embedding OpenAI 兼容的向量化接口客户端
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// maxInputsPerRequest OpenAI embeddings 接口单次最多 2048 条输入
const maxInputsPerRequest = 2048

var _ document.Embedder = (*Client)(nil)

// Client Embedding API 客户端
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	batchSize   int
	concurrency int
	maxRetries  int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient 创建 Embedding 客户端
func NewClient(cfg *config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		batchSize:   max(cfg.BatchSize, 1),
		concurrency: max(cfg.Concurrency, 1),
		maxRetries:  max(cfg.MaxRetries, 1),
		retryDelay:  time.Second,
		limiter:     rate.NewLimiter(limit, burst),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log.NewModuleLogger("embedding", "client"),
	}
}

// buildEmbeddingURL 构建 Embedding API URL
// 支持多种输入格式，智能拼接 /v1/embeddings 路径
func buildEmbeddingURL(baseURL string) string {
	if strings.Contains(baseURL, "/v1/embeddings") {
		return baseURL
	}
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/embeddings"
	}
	return fmt.Sprintf("%s/v1/embeddings", baseURL)
}

// EmbeddingRequest Embedding 请求
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse Embedding 响应
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// requestError 单次请求失败，retryable 表示可以重试
type requestError struct {
	statusCode int
	retryable  bool
	err        error
}

func (e *requestError) Error() string {
	if e.statusCode != 0 {
		return fmt.Sprintf("embedding API returned status %d: %v", e.statusCode, e.err)
	}
	return e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

// Embed 向量化单条文本
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 分批并发向量化，每个输入对应一个结果
// 某一批失败只影响该批的位置，其余批次照常返回
func (c *Client) EmbedBatch(ctx context.Context, texts []string, batchSize int) []document.EmbedResult {
	results := make([]document.EmbedResult, len(texts))
	if len(texts) == 0 {
		return results
	}
	if batchSize <= 0 {
		batchSize = c.batchSize
	}
	batchSize = min(batchSize, maxInputsPerRequest)

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	totalBatches := (len(texts) + batchSize - 1) / batchSize
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batchNum := start/batchSize + 1

		g.Go(func() error {
			vectors, err := c.embedWithRetry(ctx, texts[start:end])
			if err != nil {
				c.logger.Error("Failed to embed batch",
					"batch", batchNum,
					"total_batches", totalBatches,
					"batch_size", end-start,
					"error", err,
				)
				for i := start; i < end; i++ {
					results[i] = document.EmbedResult{Err: fmt.Errorf("batch %d: %w", batchNum, err)}
				}
				return nil
			}
			for i, v := range vectors {
				results[start+i] = document.EmbedResult{Vector: v}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// EmbedTexts 批量向量化，任一失败即返回错误
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	results := c.EmbedBatch(ctx, texts, c.batchSize)
	vectors := make([][]float32, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, r.Err)
		}
		vectors[i] = r.Vector
	}
	return vectors, nil
}

// embedWithRetry 带限流与重试的单批请求，只重试网络错误、429 与 5xx
func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		vectors, err := c.doRequest(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		var reqErr *requestError
		if !errors.As(err, &reqErr) || !reqErr.retryable || ctx.Err() != nil {
			return nil, err
		}

		c.logger.Warn("Embedding request failed, retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"status_code", reqErr.statusCode,
			"error", reqErr.err,
		)

		if attempt < c.maxRetries-1 {
			// 递增延迟
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * c.retryDelay):
			}
		}
	}

	c.logger.Error("Embedding request failed after all retries",
		"max_retries", c.maxRetries,
		"error", lastErr,
	)
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(EmbeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := buildEmbeddingURL(c.baseURL)
	c.logger.Debug("Sending embedding request",
		"url", url,
		"batch_size", len(texts),
		"model", c.model,
		"api_key", log.MaskSecret(c.apiKey),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &requestError{retryable: true, err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &requestError{
			statusCode: resp.StatusCode,
			retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var embeddingResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return collectVectors(embeddingResp, len(texts))
}

// collectVectors 按 index 还原顺序并检查数量与维度
func collectVectors(resp EmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("embedding response has %d vectors, want %d", len(resp.Data), want)
	}

	vectors := make([][]float32, want)
	dim := -1
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= want || vectors[d.Index] != nil {
			return nil, fmt.Errorf("embedding response has invalid index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embedding response has empty vector at index %d", d.Index)
		}
		if dim >= 0 && len(d.Embedding) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(d.Embedding), dim)
		}
		dim = len(d.Embedding)
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimension 获取向量维度（通过测试请求）
func (c *Client) Dimension(ctx context.Context) (int, error) {
	v, err := c.Embed(ctx, "test")
	if err != nil {
		return 0, err
	}
	return len(v), nil
}

// TestConnection 测试连接
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	c.logger.Info("Testing embedding API connection",
		"base_url", c.baseURL,
		"model", c.model,
	)

	dimension, err := c.Dimension(ctx)
	if err != nil {
		c.logger.Error("Embedding API connection test failed", "error", err)
		return 0, err
	}

	c.logger.Info("Embedding API connection test successful", "vector_dimension", dimension)
	return dimension, nil
}
