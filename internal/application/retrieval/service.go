// Package retrieval 检索与问题最相关的课程资料片段
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// Result 检索结果
type Result struct {
	Text     string            `json:"text"`
	Metadata document.Metadata `json:"metadata"`
	Distance float64           `json:"distance"`
}

// Service 检索服务
type Service struct {
	embedder    document.Embedder
	index       document.Index
	defaultTopK int
	logger      *slog.Logger
}

// NewService 创建检索服务
func NewService(embedder document.Embedder, index document.Index, cfg *config.RetrievalConfig) *Service {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &Service{
		embedder:    embedder,
		index:       index,
		defaultTopK: topK,
		logger:      log.NewModuleLogger("retrieval", "service"),
	}
}

// DefaultTopK 默认返回条数
func (s *Service) DefaultTopK() int {
	return s.defaultTopK
}

// Retrieve 返回最相近的 k 条片段，最近的在前
// 任何失败都只记录日志并返回空结果
func (s *Service) Retrieve(ctx context.Context, query string, k int) []Result {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = s.defaultTopK
	}
	logger := log.FromContext(ctx, s.logger)

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Failed to embed query, continuing without context", "error", err)
		return nil
	}

	matches, err := s.index.Query(ctx, vector, k)
	if err != nil {
		logger.Warn("Failed to query index, continuing without context", "error", err)
		return nil
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Text:     m.Text,
			Metadata: m.Metadata,
			Distance: m.Distance,
		})
	}

	logger.Debug("Retrieved context", "k", k, "hits", len(results))
	return results
}

// Texts 提取结果文本
func Texts(results []Result) []string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts
}
