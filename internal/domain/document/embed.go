package document

import (
	"context"
	"fmt"
)

// EmbedAll 全部文本向量化成功才返回向量，否则返回 ErrEmbeddingFailed
func EmbedAll(ctx context.Context, embedder Embedder, texts []string) ([][]float32, error) {
	results := embedder.EmbedBatch(ctx, texts, 0)
	if len(results) != len(texts) {
		return nil, fmt.Errorf("%w: got %d results for %d texts", ErrEmbeddingFailed, len(results), len(texts))
	}

	vectors := make([][]float32, len(results))
	failed := 0
	var firstErr error
	for i, r := range results {
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		vectors[i] = r.Vector
	}
	if failed > 0 {
		return nil, fmt.Errorf("%w: %d of %d texts: %v", ErrEmbeddingFailed, failed, len(texts), firstErr)
	}
	return vectors, nil
}
