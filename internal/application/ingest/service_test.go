package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/domain/events"
	"github.com/coursebot/backend/internal/infrastructure/chunker"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/embedding"
	"github.com/coursebot/backend/internal/infrastructure/extractor"
	"github.com/coursebot/backend/internal/infrastructure/storage"
	"github.com/coursebot/backend/internal/infrastructure/tokenizer"
)

type fixture struct {
	svc     *Service
	index   document.Index
	chunker *chunker.Chunker
	emb     *embedding.MockEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, cleanup, err := storage.ProvideDB(&config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "ingest.db")})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	tok, err := tokenizer.Get()
	require.NoError(t, err)

	emb := embedding.NewMockEmbedder(64)
	idx := storage.NewSQLiteIndex(db, &config.IndexConfig{Collection: "file_collection"}, emb)
	ch := chunker.New(tok, &config.ChunkingConfig{Size: 50, Overlap: 10, UpdateUnit: "characters"})

	return &fixture{
		svc:     NewService(extractor.New(), ch, idx),
		index:   idx,
		chunker: ch,
		emb:     emb,
	}
}

func (f *fixture) records(t *testing.T, name string) []document.Record {
	t.Helper()
	records, err := f.index.GetByFilter(context.Background(), document.Filter{SourceName: name})
	require.NoError(t, err)
	return records
}

func assertOrdinals(t *testing.T, records []document.Record) {
	t.Helper()
	for i, r := range records {
		assert.Equal(t, i, r.Metadata.ChunkIndex)
	}
}

func longText(words int) string {
	var b strings.Builder
	for i := range words {
		fmt.Fprintf(&b, "word%d ", i)
	}
	return b.String()
}

func TestUpload_ChunkCountMatchesChunker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := longText(120)

	res, err := f.svc.Upload(ctx, []byte(text), "notes.txt")
	require.NoError(t, err)

	expected, err := f.chunker.Chunk(text, f.chunker.IngestOptions())
	require.NoError(t, err)
	require.Greater(t, len(expected), 1)
	assert.Equal(t, len(expected), res.ChunkCount)
	assert.Equal(t, "text", res.Format)

	records := f.records(t, "notes.txt")
	require.Len(t, records, len(expected))
	assertOrdinals(t, records)
	for i, r := range records {
		assert.Equal(t, expected[i], r.Text)
		assert.Equal(t, "text", r.Metadata.ContentType)
		assert.NotZero(t, r.Metadata.IngestedAt)
	}
}

func TestUpload_HTML(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(),
		[]byte("<html><head><title>x</title></head><body><h1>Week 1</h1><p>Read chapter one.</p><script>alert(1)</script></body></html>"),
		"week1.html")
	require.NoError(t, err)
	assert.Equal(t, "html", res.Format)

	records := f.records(t, "week1.html")
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Text, "Read chapter one.")
	assert.NotContains(t, records[0].Text, "alert")
}

func TestUpload_DuplicateThenReupload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, []byte("first version"), "syllabus.txt")
	require.NoError(t, err)

	_, err = f.svc.Upload(ctx, []byte("second version"), "syllabus.txt")
	assert.ErrorIs(t, err, document.ErrDuplicate)

	removed, err := f.svc.DeleteSource(ctx, "syllabus.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.svc.Upload(ctx, []byte("second version"), "syllabus.txt")
	require.NoError(t, err)
	assert.Equal(t, "second version", f.records(t, "syllabus.txt")[0].Text)
}

func TestUpload_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	_, err := f.svc.Upload(ctx, png, "diagram.png")
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)

	_, err = f.svc.Upload(ctx, []byte("   \n\t"), "blank.txt")
	assert.ErrorIs(t, err, document.ErrEmptyExtraction)

	_, err = f.svc.Upload(ctx, []byte("text"), "  ")
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)

	calls, _ := f.emb.Calls()
	assert.Zero(t, calls)
}

func TestUpload_EmbeddingFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.emb.FailOn = func(text string) bool { return strings.Contains(text, "word7") }

	_, err := f.svc.Upload(context.Background(), []byte(longText(120)), "notes.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), `ingest failed for "notes.txt"`)
	assert.Empty(t, f.records(t, "notes.txt"))
}

func TestUpdateSource_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateSource(ctx, "a.txt", UpdateInput{})
	assert.ErrorIs(t, err, document.ErrNoContentProvided)

	_, err = f.svc.UpdateSource(ctx, "a.txt", UpdateInput{Data: []byte("x"), RawText: "y"})
	assert.ErrorIs(t, err, document.ErrConflictingContent)

	_, err = f.svc.UpdateSource(ctx, "a.txt", UpdateInput{RawText: "new text"})
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestUpdateSource_RawTextRestartsOrdinals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, []byte(longText(120)), "notes.txt")
	require.NoError(t, err)
	before := f.records(t, "notes.txt")

	res, err := f.svc.UpdateSource(ctx, "notes.txt", UpdateInput{RawText: "Short replacement.\n\nSecond paragraph here."})
	require.NoError(t, err)
	assert.Equal(t, "text", res.Format)

	after := f.records(t, "notes.txt")
	require.Len(t, after, res.ChunkCount)
	assertOrdinals(t, after)
	for _, old := range before {
		for _, cur := range after {
			assert.NotEqual(t, old.ID, cur.ID)
		}
	}
}

func TestUpdateSource_FileReplacesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, []byte("old syllabus"), "syllabus.txt")
	require.NoError(t, err)

	_, err = f.svc.UpdateSource(ctx, "syllabus.txt", UpdateInput{Data: []byte("<p>new syllabus</p>"), DataFilename: "syllabus.html"})
	require.NoError(t, err)

	records := f.records(t, "syllabus.txt")
	require.Len(t, records, 1)
	assert.Equal(t, "html", records[0].Metadata.ContentType)
	assert.Contains(t, records[0].Text, "new syllabus")
}

func TestUpdateSource_RestoresOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, []byte(longText(80)), "notes.txt")
	require.NoError(t, err)
	before := f.records(t, "notes.txt")

	f.emb.FailOn = func(text string) bool { return strings.Contains(text, "POISON") }
	_, err = f.svc.UpdateSource(ctx, "notes.txt", UpdateInput{RawText: "POISON pill content"})
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrEmbeddingFailed)

	after := f.records(t, "notes.txt")
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Text, after[i].Text)
	}
}

func TestDeleteSource_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteSource(context.Background(), "ghost.pdf")
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestBlankSourceNameTouchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, []byte("alpha notes"), "a.txt")
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, []byte("beta notes"), "b.txt")
	require.NoError(t, err)

	for _, name := range []string{"\\", "/", "  ", "\\\\", ""} {
		removed, err := f.svc.DeleteSource(ctx, name)
		assert.ErrorIs(t, err, document.ErrNotFound, "delete %q", name)
		assert.Zero(t, removed)

		_, err = f.svc.UpdateSource(ctx, name, UpdateInput{RawText: "replacement"})
		assert.ErrorIs(t, err, document.ErrNotFound, "update %q", name)
	}

	all, err := f.index.GetByFilter(ctx, document.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "alpha notes", f.records(t, "a.txt")[0].Text)
	assert.Equal(t, "beta notes", f.records(t, "b.txt")[0].Text)
}

func TestDeleteAllAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Upload(ctx, []byte(longText(120)), "b.txt")
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, []byte("tiny"), "a.txt")
	require.NoError(t, err)

	sources, err := f.svc.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "a.txt", sources[0].SourceName)
	assert.Equal(t, 1, sources[0].ChunkCount)
	total := sources[0].ChunkCount + sources[1].ChunkCount

	n, err = f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, n)

	sources, err = f.svc.ListSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestConcurrentUploads_DistinctNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("doc%d.txt", i)
			_, err := f.svc.Upload(ctx, []byte(strings.Repeat(name+" ", 60)), name)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := range 8 {
		name := fmt.Sprintf("doc%d.txt", i)
		records := f.records(t, name)
		require.NotEmpty(t, records)
		assertOrdinals(t, records)
		for _, r := range records {
			assert.Contains(t, r.Text, name)
		}
	}
	assert.Zero(t, f.svc.names.size())
}

func TestConcurrentUploads_SameName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Upload(ctx, []byte(fmt.Sprintf("version %d", i)), "race.txt")
		}()
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, document.ErrDuplicate):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.Len(t, f.records(t, "race.txt"), 1)
}

func TestHandleSourceFileEvent(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "lab1.txt")

	event := func(typ events.EventType) *events.SourceFileEvent {
		return &events.SourceFileEvent{EventType: typ, SourceName: "lab1.txt", FilePath: path, EventTime: time.Now()}
	}

	require.NoError(t, os.WriteFile(path, []byte("lab one instructions"), 0644))
	require.NoError(t, f.svc.HandleSourceFileEvent(event(events.SourceFileCreated)))
	assert.Equal(t, "lab one instructions", f.records(t, "lab1.txt")[0].Text)

	// 已存在时创建事件转为更新
	require.NoError(t, os.WriteFile(path, []byte("lab one revised"), 0644))
	require.NoError(t, f.svc.HandleSourceFileEvent(event(events.SourceFileDiscovered)))
	assert.Equal(t, "lab one revised", f.records(t, "lab1.txt")[0].Text)

	require.NoError(t, f.svc.HandleSourceFileEvent(event(events.SourceFileRemoved)))
	assert.Empty(t, f.records(t, "lab1.txt"))
	require.NoError(t, f.svc.HandleSourceFileEvent(event(events.SourceFileRemoved)))

	// 不存在时修改事件转为上传
	require.NoError(t, f.svc.HandleSourceFileEvent(event(events.SourceFileModified)))
	assert.Len(t, f.records(t, "lab1.txt"), 1)
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "syllabus.pdf", SourceName("syllabus.pdf"))
	assert.Equal(t, "syllabus.pdf", SourceName(`C:\Users\prof\syllabus.pdf`))
	assert.Equal(t, "notes.txt", SourceName(" /tmp/notes.txt "))
	assert.Empty(t, SourceName(""))
	assert.Empty(t, SourceName("/"))
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
	subs      int
}

func (b *recordingBus) Subscribe(events.EventType, events.Handler) func() { b.subs++; return func() {} }

func (b *recordingBus) SubscribeMultiple(types []events.EventType, h events.Handler) func() {
	b.subs += len(types)
	return func() {}
}

func (b *recordingBus) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *recordingBus) Close() {}

func (b *recordingBus) actions() []events.IndexAction {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.IndexAction
	for _, e := range b.published {
		if ie, ok := e.(*events.IndexEvent); ok {
			out = append(out, ie.Action)
		}
	}
	return out
}

func TestIndexChangesArePublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 订阅之前不发布
	_, err := f.svc.Upload(ctx, []byte("before"), "early.txt")
	require.NoError(t, err)

	bus := &recordingBus{}
	f.svc.Subscribe(bus)
	assert.Equal(t, len(events.SourceFileEventTypes), bus.subs)

	_, err = f.svc.Upload(ctx, []byte("pointers"), "notes.txt")
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, []byte("pointers"), "notes.txt")
	require.ErrorIs(t, err, document.ErrDuplicate)
	_, err = f.svc.UpdateSource(ctx, "notes.txt", UpdateInput{RawText: "arrays"})
	require.NoError(t, err)
	_, err = f.svc.DeleteSource(ctx, "notes.txt")
	require.NoError(t, err)
	_, err = f.svc.DeleteAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []events.IndexAction{
		events.IndexUploaded, events.IndexUpdated, events.IndexDeleted, events.IndexCleared,
	}, bus.actions())

	last := bus.published[len(bus.published)-1].(*events.IndexEvent)
	assert.Empty(t, last.SourceName)
	assert.Equal(t, 1, last.ChunkCount)
}
