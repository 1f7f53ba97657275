package vector

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/embedding"
)

// fakeQdrant 内存实现的最小 Qdrant；未实现的方法会 panic
type fakeQdrant struct {
	pointsClient

	exists       bool
	created      []string
	fieldIndexes []string
	points       map[string]map[string]*qdrant.Value
	scores       map[string]float32
	vectors     map[string][]float32
	scrollCalls int
	upserts     []*qdrant.PointStruct
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		points:  make(map[string]map[string]*qdrant.Value),
		scores:  make(map[string]float32),
		vectors: make(map[string][]float32),
	}
}

func (f *fakeQdrant) CollectionExists(_ context.Context, _ string) (bool, error) {
	return f.exists, nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.created = append(f.created, req.GetCollectionName())
	f.exists = true
	return nil
}

func (f *fakeQdrant) CreateFieldIndex(_ context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error) {
	f.fieldIndexes = append(f.fieldIndexes, req.GetFieldName())
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	for _, p := range req.GetPoints() {
		id := p.GetId().GetUuid()
		f.points[id] = p.GetPayload()
		f.vectors[id] = inputVector(p.GetVectors().GetVector())
		f.upserts = append(f.upserts, p)
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Get(_ context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
	var out []*qdrant.RetrievedPoint
	for _, id := range req.GetIds() {
		if payload, ok := f.points[id.GetUuid()]; ok {
			out = append(out, &qdrant.RetrievedPoint{
				Id:      id,
				Payload: payload,
				Vectors: &qdrant.VectorsOutput{VectorsOptions: &qdrant.VectorsOutput_Vector{
					Vector: &qdrant.VectorOutput{Data: f.vectors[id.GetUuid()]},
				}},
			})
		}
	}
	return out, nil
}

func (f *fakeQdrant) Scroll(_ context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	f.scrollCalls++

	var want string
	if must := req.GetFilter().GetMust(); len(must) > 0 {
		want = must[0].GetField().GetMatch().GetKeyword()
	}

	keys := make([]string, 0, len(f.points))
	for k := range f.points {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := req.GetOffset().GetUuid()
	var out []*qdrant.RetrievedPoint
	for _, k := range keys {
		if start != "" && k < start {
			continue
		}
		payload := f.points[k]
		if want != "" && payload[fieldSourceName].GetStringValue() != want {
			continue
		}
		out = append(out, &qdrant.RetrievedPoint{Id: qdrant.NewID(k), Payload: payload})
		if uint32(len(out)) == req.GetLimit() {
			break
		}
	}
	return out, nil
}

func (f *fakeQdrant) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	for _, id := range req.GetPoints().GetPoints().GetIds() {
		delete(f.points, id.GetUuid())
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	var out []*qdrant.ScoredPoint
	for k, payload := range f.points {
		out = append(out, &qdrant.ScoredPoint{Id: qdrant.NewID(k), Payload: payload, Score: f.scores[k]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetScore() > out[j].GetScore() })
	if n := int(req.GetLimit()); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func inputVector(v *qdrant.Vector) []float32 {
	if dense := v.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return v.GetData()
}

func newTestQdrantIndex(t *testing.T) (*QdrantIndex, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	idx := newQdrantIndex(fake, &config.IndexConfig{Collection: "file_collection", VectorSize: 32}, embedding.NewMockEmbedder(32))
	require.NoError(t, idx.EnsureCollection(context.Background()))
	return idx, fake
}

func TestQdrantIndex_EnsureCollection(t *testing.T) {
	idx, fake := newTestQdrantIndex(t)
	assert.Equal(t, []string{"file_collection"}, fake.created)
	assert.ElementsMatch(t, []string{fieldSourceName, fieldChunkIndex}, fake.fieldIndexes)

	// 已存在时不重复创建
	require.NoError(t, idx.EnsureCollection(context.Background()))
	assert.Len(t, fake.created, 1)
}

func TestQdrantIndex_AddAndScrollPaging(t *testing.T) {
	idx, fake := newTestQdrantIndex(t)
	ctx := context.Background()

	n := scrollPageSize + 10
	texts := make([]string, n)
	ids := make([]string, n)
	metas := make([]document.Metadata, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
		ids[i] = fmt.Sprintf("syllabus-%d", i)
		metas[i] = document.Metadata{SourceName: "syllabus.pdf", ChunkIndex: i}
	}
	require.NoError(t, idx.Add(ctx, texts, ids, metas))
	require.NoError(t, idx.Add(ctx, []string{"other"}, []string{"o-0"}, []document.Metadata{{SourceName: "other.txt"}}))

	records, err := idx.GetByFilter(ctx, document.Filter{SourceName: "syllabus.pdf"})
	require.NoError(t, err)
	require.Len(t, records, n)
	assert.GreaterOrEqual(t, fake.scrollCalls, 2)
	for i, r := range records {
		assert.Equal(t, i, r.Metadata.ChunkIndex)
		assert.Equal(t, fmt.Sprintf("syllabus-%d", i), r.ID)
	}

	all, err := idx.GetByFilter(ctx, document.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, n+1)
}

func TestQdrantIndex_AddValidation(t *testing.T) {
	idx, fake := newTestQdrantIndex(t)
	ctx := context.Background()

	assert.ErrorIs(t, idx.Add(ctx, []string{"a"}, nil, nil), document.ErrLengthMismatch)
	assert.ErrorIs(t, idx.Add(ctx, []string{"a"}, []string{"1"}, []document.Metadata{{}}), document.ErrInvalidMetadata)

	emb := embedding.NewMockEmbedder(32)
	emb.FailOn = func(text string) bool { return text == "bad" }
	idx.embedder = emb
	err := idx.Add(ctx, []string{"good", "bad"}, []string{"1", "2"},
		[]document.Metadata{{SourceName: "x"}, {SourceName: "x", ChunkIndex: 1}})
	assert.ErrorIs(t, err, document.ErrEmbeddingFailed)
	assert.Empty(t, fake.points)
}

func TestQdrantIndex_UpdateAndDelete(t *testing.T) {
	idx, fake := newTestQdrantIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"old"}, []string{"r1"}, []document.Metadata{{SourceName: "s"}}))
	oldVector := fake.vectors[pointID("r1")]
	require.NotEmpty(t, oldVector)

	assert.ErrorIs(t, idx.Update(ctx, "r1", nil, nil), document.ErrNothingToUpdate)
	text := "new text"
	assert.ErrorIs(t, idx.Update(ctx, "missing", &text, nil), document.ErrNotFound)

	require.NoError(t, idx.Update(ctx, "r1", &text, nil))
	records, err := idx.GetByFilter(ctx, document.Filter{SourceName: "s"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new text", records[0].Text)
	assert.Equal(t, "r1", records[0].ID)
	textVector := fake.vectors[pointID("r1")]
	assert.NotEqual(t, oldVector, textVector)

	m := document.Metadata{SourceName: "s", ChunkIndex: 4}
	require.NoError(t, idx.Update(ctx, "r1", nil, &m))

	// 仅更新元数据时保留原文本与原向量，整个点一次写回
	last := fake.upserts[len(fake.upserts)-1]
	assert.Equal(t, "new text", last.GetPayload()[fieldText].GetStringValue())
	assert.Equal(t, int64(4), last.GetPayload()[fieldChunkIndex].GetIntegerValue())
	assert.Equal(t, textVector, fake.vectors[pointID("r1")])

	records, err = idx.GetByFilter(ctx, document.Filter{SourceName: "s"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].Metadata.ChunkIndex)
	assert.Equal(t, "new text", records[0].Text)

	require.NoError(t, idx.Delete(ctx, []string{"r1", "never-existed"}))
	assert.Empty(t, fake.points)
	require.NoError(t, idx.Delete(ctx, nil))
}

func TestQdrantIndex_UpdateEachCallIsOneUpsert(t *testing.T) {
	idx, fake := newTestQdrantIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"a", "b"}, []string{"r1", "r2"},
		[]document.Metadata{{SourceName: "s"}, {SourceName: "s", ChunkIndex: 1}}))
	before := len(fake.upserts)

	text := "rewritten"
	m := document.Metadata{SourceName: "s2", ChunkIndex: 0, ContentType: "text"}
	require.NoError(t, idx.Update(ctx, "r2", &text, &m))
	require.Len(t, fake.upserts, before+1)

	p := fake.upserts[before]
	assert.Equal(t, pointID("r2"), p.GetId().GetUuid())
	assert.Equal(t, "r2", p.GetPayload()[fieldRecordID].GetStringValue())
	assert.Equal(t, "rewritten", p.GetPayload()[fieldText].GetStringValue())
	assert.Equal(t, "s2", p.GetPayload()[fieldSourceName].GetStringValue())
	assert.NotEmpty(t, inputVector(p.GetVectors().GetVector()))
}

func TestQdrantIndex_QueryDistance(t *testing.T) {
	idx, fake := newTestQdrantIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"near", "far"}, []string{"n", "f"},
		[]document.Metadata{{SourceName: "s"}, {SourceName: "s", ChunkIndex: 1}}))
	fake.scores[pointID("n")] = 0.9
	fake.scores[pointID("f")] = 0.2

	matches, err := idx.Query(ctx, make([]float32, 32), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "n", matches[0].ID)
	assert.InDelta(t, 0.1, matches[0].Distance, 1e-6)

	none, err := idx.Query(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPointID(t *testing.T) {
	u := uuid.NewString()
	assert.Equal(t, u, pointID(u))

	a := pointID("syllabus-0")
	assert.Equal(t, a, pointID("syllabus-0"))
	assert.NotEqual(t, a, pointID("syllabus-1"))
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
