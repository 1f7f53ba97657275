// Package document 定义课程文档、分块记录与向量索引的领域模型
package document

import (
	"context"
	"time"
)

// Metadata 分块元数据
type Metadata struct {
	// SourceName 所属文档名（上传时的文件名）
	SourceName string `json:"file_name"`
	// ChunkIndex 块序号，从 0 开始连续
	ChunkIndex int `json:"chunk_index"`
	// ContentType 提取时识别出的格式，如 pdf、docx、text
	ContentType string `json:"content_type,omitempty"`
	// IngestedAt 入库时间（Unix 秒）
	IngestedAt int64 `json:"ingested_at,omitempty"`
}

// Valid 检查元数据是否满足索引要求
func (m Metadata) Valid() bool {
	return m.SourceName != "" && m.ChunkIndex >= 0
}

// Record 索引中的一条分块记录
type Record struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"-"`
	Metadata Metadata  `json:"metadata"`
}

// Match 近邻查询结果
type Match struct {
	Record
	// Distance 余弦距离，1 - 余弦相似度，越小越相近
	Distance float64 `json:"distance"`
}

// Filter 记录过滤条件，SourceName 为空表示全部
type Filter struct {
	SourceName string
}

// SourceSummary 文档列表视图
type SourceSummary struct {
	SourceName  string    `json:"source_name"`
	ChunkCount  int       `json:"chunk_count"`
	ContentType string    `json:"content_type,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// EmbedResult 单条文本的向量化结果，Vector 与 Err 二选一
type EmbedResult struct {
	Vector []float32
	Err    error
}

// Embedder 文本向量化接口
type Embedder interface {
	// Embed 向量化单条文本
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch 批量向量化，结果与输入一一对应，失败位置带错误
	EmbedBatch(ctx context.Context, texts []string, batchSize int) []EmbedResult
}

// Index 向量索引接口
type Index interface {
	// Add 向量化并写入记录，任一文本向量化失败时不写入任何记录
	Add(ctx context.Context, texts, ids []string, metas []Metadata) error
	// GetByFilter 按文档名查询记录，按 (文档名, 块序号) 排序
	GetByFilter(ctx context.Context, filter Filter) ([]Record, error)
	// Update 更新记录文本或元数据，text 非空时重新向量化
	Update(ctx context.Context, id string, text *string, meta *Metadata) error
	// Delete 删除记录，不存在的 id 忽略
	Delete(ctx context.Context, ids []string) error
	// Query 返回与向量最相近的 k 条记录，最近的在前
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
}

// Summarize 把记录按文档名汇总为列表视图
func Summarize(records []Record) []SourceSummary {
	var out []SourceSummary
	index := make(map[string]int)
	for _, r := range records {
		i, ok := index[r.Metadata.SourceName]
		if !ok {
			i = len(out)
			index[r.Metadata.SourceName] = i
			out = append(out, SourceSummary{
				SourceName:  r.Metadata.SourceName,
				ContentType: r.Metadata.ContentType,
			})
		}
		out[i].ChunkCount++
		if ts := r.Metadata.IngestedAt; ts > 0 {
			if t := time.Unix(ts, 0).UTC(); t.After(out[i].IngestedAt) {
				out[i].IngestedAt = t
			}
		}
	}
	return out
}
