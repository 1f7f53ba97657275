// Package vector Qdrant 向量索引
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// scrollPageSize 每页读取的点数
const scrollPageSize = 256

// payload 字段
const (
	fieldRecordID    = "record_id"
	fieldText        = "text"
	fieldSourceName  = "file_name"
	fieldChunkIndex  = "chunk_index"
	fieldContentType = "content_type"
	fieldIngestedAt  = "ingested_at"
)

// pointNamespace 非 UUID 记录 id 映射为 Qdrant 点 id 时使用的命名空间
var pointNamespace = uuid.MustParse("6f1c2a0e-3b7d-4c55-9a51-0c7e4d1b2f60")

// pointsClient QdrantIndex 用到的客户端方法
type pointsClient interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// 确保 QdrantIndex 实现了 document.Index 接口
var _ document.Index = (*QdrantIndex)(nil)

// QdrantIndex 基于 Qdrant 的向量索引
type QdrantIndex struct {
	client     pointsClient
	collection string
	vectorSize uint64
	embedder   document.Embedder
	logger     *slog.Logger
}

// NewQdrantIndex 连接 Qdrant 并确保集合存在，返回关闭函数
func NewQdrantIndex(cfg *config.IndexConfig, embedder document.Embedder) (*QdrantIndex, func(), error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := newQdrantIndex(client, cfg, embedder)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := idx.EnsureCollection(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}

	return idx, func() { _ = client.Close() }, nil
}

func newQdrantIndex(client pointsClient, cfg *config.IndexConfig, embedder document.Embedder) *QdrantIndex {
	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		vectorSize: uint64(cfg.VectorSize),
		embedder:   embedder,
		logger:     log.NewModuleLogger("vector", "qdrant_index"),
	}
}

// Ping 检查 Qdrant 服务是否可用
func (q *QdrantIndex) Ping(ctx context.Context) error {
	reply, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	q.logger.Debug("Qdrant is healthy", "version", reply.GetVersion())
	return nil
}

// EnsureCollection 确保集合存在，新建时创建余弦距离集合与 payload 索引
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}

	indexes := []struct {
		field string
		typ   qdrant.FieldType
	}{
		{fieldSourceName, qdrant.FieldType_FieldTypeKeyword},
		{fieldChunkIndex, qdrant.FieldType_FieldTypeInteger},
	}
	for _, ix := range indexes {
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      ix.field,
			FieldType:      ix.typ.Enum(),
		}); err != nil {
			return fmt.Errorf("failed to create payload index %s: %w", ix.field, err)
		}
	}

	q.logger.Info("Qdrant collection created",
		"collection", q.collection,
		"vector_size", q.vectorSize,
	)
	return nil
}

// Add 向量化并写入记录
func (q *QdrantIndex) Add(ctx context.Context, texts, ids []string, metas []document.Metadata) error {
	if len(texts) != len(ids) || len(texts) != len(metas) {
		return fmt.Errorf("%w: %d texts, %d ids, %d metadatas", document.ErrLengthMismatch, len(texts), len(ids), len(metas))
	}
	for i, m := range metas {
		if !m.Valid() {
			return fmt.Errorf("%w: record %q", document.ErrInvalidMetadata, ids[i])
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := document.EmbedAll(ctx, q.embedder, texts)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(texts))
	for i := range texts {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(ids[i])),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(buildPayload(ids[i], texts[i], metas[i])),
		}
	}

	wait := true
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	q.logger.Debug("Points upserted", "collection", q.collection, "count", len(points))
	return nil
}

// GetByFilter 分页滚动读取记录（不含向量）
func (q *QdrantIndex) GetByFilter(ctx context.Context, filter document.Filter) ([]document.Record, error) {
	var qFilter *qdrant.Filter
	if filter.SourceName != "" {
		qFilter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldSourceName, filter.SourceName)},
		}
	}

	var (
		records []document.Record
		offset  *qdrant.PointId
	)
	limit := uint32(scrollPageSize + 1)
	for {
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         qFilter,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		// 多取一个点作为下一页的起点
		more := len(points) > scrollPageSize
		if more {
			offset = points[scrollPageSize].GetId()
			points = points[:scrollPageSize]
		}
		for _, p := range points {
			records = append(records, recordFromPayload(p.GetPayload()))
		}
		if !more {
			break
		}
	}

	document.SortRecords(records)
	return records, nil
}

// Update 更新记录文本（重新向量化）或元数据
// 整个点以一次 Upsert 写回，向量与 payload 不会出现只更新一半的情况
func (q *QdrantIndex) Update(ctx context.Context, id string, text *string, meta *document.Metadata) error {
	if text == nil && meta == nil {
		return document.ErrNothingToUpdate
	}
	if meta != nil && !meta.Valid() {
		return fmt.Errorf("%w: record %q", document.ErrInvalidMetadata, id)
	}

	pid := qdrant.NewID(pointID(id))
	found, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{pid},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get point: %w", err)
	}
	if len(found) == 0 {
		return fmt.Errorf("%w: record %q", document.ErrNotFound, id)
	}

	current := recordFromPayload(found[0].GetPayload())
	if current.ID == "" {
		current.ID = id
	}

	var vector []float32
	if text != nil {
		vectors, err := document.EmbedAll(ctx, q.embedder, []string{*text})
		if err != nil {
			return err
		}
		vector = vectors[0]
		current.Text = *text
	} else {
		vector = denseVector(found[0].GetVectors())
		if len(vector) == 0 {
			return fmt.Errorf("point for record %q has no stored vector", id)
		}
	}
	if meta != nil {
		current.Metadata = *meta
	}

	wait := true
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      pid,
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(buildPayload(current.ID, current.Text, current.Metadata)),
		}},
	}); err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Delete 删除记录，不存在的 id 忽略
func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = qdrant.NewID(pointID(id))
	}

	wait := true
	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pids...),
	}); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Query 返回余弦距离最近的 k 条记录
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]document.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	matches := make([]document.Match, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, document.Match{
			Record: recordFromPayload(hit.GetPayload()),
			// Qdrant 余弦集合返回相似度
			Distance: 1 - float64(hit.GetScore()),
		})
	}
	return matches, nil
}

// pointID Qdrant 只接受 UUID 或整数 id
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// denseVector 读取点的默认稠密向量，兼容旧版服务只填 data 字段的情况
func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return out.GetData()
}

func metaPayload(m document.Metadata) map[string]any {
	return map[string]any{
		fieldSourceName:  m.SourceName,
		fieldChunkIndex:  int64(m.ChunkIndex),
		fieldContentType: m.ContentType,
		fieldIngestedAt:  m.IngestedAt,
	}
}

func buildPayload(id, text string, m document.Metadata) map[string]any {
	p := metaPayload(m)
	p[fieldRecordID] = id
	p[fieldText] = text
	return p
}

func recordFromPayload(payload map[string]*qdrant.Value) document.Record {
	return document.Record{
		ID:   payload[fieldRecordID].GetStringValue(),
		Text: payload[fieldText].GetStringValue(),
		Metadata: document.Metadata{
			SourceName:  payload[fieldSourceName].GetStringValue(),
			ChunkIndex:  int(payload[fieldChunkIndex].GetIntegerValue()),
			ContentType: payload[fieldContentType].GetStringValue(),
			IngestedAt:  payload[fieldIngestedAt].GetIntegerValue(),
		},
	}
}
