package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/coursebot/backend/internal/domain/document"
)

// MockEmbedder 本地词袋哈希向量化器（用于测试），共享词越多的文本余弦距离越近
type MockEmbedder struct {
	Dim int
	// FailOn 返回 true 的文本向量化失败
	FailOn func(text string) bool

	mu    sync.Mutex
	calls int
	texts int
}

var _ document.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder 创建 Mock 向量化器
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

// Embed 向量化单条文本
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	r := m.EmbedBatch(ctx, []string{text}, 1)
	return r[0].Vector, r[0].Err
}

// EmbedBatch 批量向量化
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string, _ int) []document.EmbedResult {
	m.mu.Lock()
	m.calls++
	m.texts += len(texts)
	m.mu.Unlock()

	results := make([]document.EmbedResult, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		if m.FailOn != nil && m.FailOn(t) {
			results[i].Err = errors.New("mock embedding failure")
			continue
		}
		results[i].Vector = m.vector(t)
	}
	return results
}

// Calls 调用次数与累计文本数
func (m *MockEmbedder) Calls() (calls, texts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.texts
}

func (m *MockEmbedder) vector(text string) []float32 {
	dim := max(m.Dim, 1)
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
