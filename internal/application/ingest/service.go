// Package ingest 课程文档的上传、更新与删除
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/domain/events"
	"github.com/coursebot/backend/internal/infrastructure/chunker"
	"github.com/coursebot/backend/internal/infrastructure/extractor"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// Result 入库结果
type Result struct {
	SourceName string `json:"source_name"`
	ChunkCount int    `json:"chunk_count"`
	Format     string `json:"format"`
}

// UpdateInput 更新内容，Data 与 RawText 必须且只能提供一个
type UpdateInput struct {
	Data []byte
	// DataFilename 用于识别 Data 的格式，为空时使用文档名
	DataFilename string
	RawText      string
}

// Service 入库服务
// 同名文档的操作串行执行，DeleteAll 独占整个索引
type Service struct {
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	index     document.Index

	global sync.RWMutex
	names  *keyedMutex

	// bus 索引变化的发布目标，Subscribe 之前为空
	bus events.EventBus

	now    func() time.Time
	logger *slog.Logger
}

// NewService 创建入库服务
func NewService(ext *extractor.Extractor, ch *chunker.Chunker, index document.Index) *Service {
	return &Service{
		extractor: ext,
		chunker:   ch,
		index:     index,
		names:     newKeyedMutex(),
		now:       time.Now,
		logger:    log.NewModuleLogger("ingest", "service"),
	}
}

// SourceName 规范化文档名：去掉客户端附带的目录部分
func SourceName(filename string) string {
	name := strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func (s *Service) lock(name string) func() {
	s.global.RLock()
	unlock := s.names.Lock(name)
	return func() {
		unlock()
		s.global.RUnlock()
	}
}

// Upload 提取、分块并写入一个新文档
func (s *Service) Upload(ctx context.Context, data []byte, filename string) (*Result, error) {
	name := SourceName(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: missing file name", document.ErrUnsupportedFormat)
	}
	logger := log.FromContext(log.WithSourceName(ctx, name), s.logger)

	format, chunks, err := s.chunkFile(data, name)
	if err != nil {
		return nil, err
	}

	defer s.lock(name)()

	existing, err := s.index.GetByFilter(ctx, document.Filter{SourceName: name})
	if err != nil {
		return nil, fmt.Errorf("ingest failed for %q: %w", name, err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", document.ErrDuplicate, name)
	}

	if err := s.add(ctx, name, format, chunks); err != nil {
		logger.Error("Failed to add document", "error", err)
		return nil, fmt.Errorf("ingest failed for %q: %w", name, err)
	}

	logger.Info("Document uploaded", "format", format, "chunks", len(chunks))
	s.publish(events.IndexUploaded, name, len(chunks))
	return &Result{SourceName: name, ChunkCount: len(chunks), Format: format}, nil
}

// UpdateSource 用新内容替换已有文档，块序号从 0 重新开始
func (s *Service) UpdateSource(ctx context.Context, name string, in UpdateInput) (*Result, error) {
	name = SourceName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: missing file name", document.ErrNotFound)
	}
	logger := log.FromContext(log.WithSourceName(ctx, name), s.logger)

	hasData := len(in.Data) > 0
	hasText := strings.TrimSpace(in.RawText) != ""
	switch {
	case !hasData && !hasText:
		return nil, document.ErrNoContentProvided
	case hasData && hasText:
		return nil, document.ErrConflictingContent
	}

	var (
		format string
		chunks []string
		err    error
	)
	if hasData {
		filename := in.DataFilename
		if filename == "" {
			filename = name
		}
		format, chunks, err = s.chunkFile(in.Data, filename)
	} else {
		format = string(extractor.FormatText)
		chunks, err = s.chunker.Chunk(in.RawText, s.chunker.UpdateOptions())
		if err == nil && len(chunks) == 0 {
			err = fmt.Errorf("%w: %s", document.ErrEmptyExtraction, name)
		}
	}
	if err != nil {
		return nil, err
	}

	defer s.lock(name)()

	old, err := s.index.GetByFilter(ctx, document.Filter{SourceName: name})
	if err != nil {
		return nil, fmt.Errorf("ingest failed for %q: %w", name, err)
	}
	if len(old) == 0 {
		return nil, fmt.Errorf("%w: %s", document.ErrNotFound, name)
	}

	if err := s.index.Delete(ctx, recordIDs(old)); err != nil {
		return nil, fmt.Errorf("ingest failed for %q: %w", name, err)
	}

	if err := s.add(ctx, name, format, chunks); err != nil {
		logger.Error("Failed to add updated document, restoring previous version", "error", err)
		s.restore(ctx, logger, old)
		return nil, fmt.Errorf("ingest failed for %q: %w", name, err)
	}

	logger.Info("Document updated",
		"format", format,
		"old_chunks", len(old),
		"new_chunks", len(chunks),
	)
	s.publish(events.IndexUpdated, name, len(chunks))
	return &Result{SourceName: name, ChunkCount: len(chunks), Format: format}, nil
}

// DeleteSource 删除一个文档的全部分块
func (s *Service) DeleteSource(ctx context.Context, name string) (int, error) {
	name = SourceName(name)
	if name == "" {
		return 0, fmt.Errorf("%w: missing file name", document.ErrNotFound)
	}
	defer s.lock(name)()

	records, err := s.index.GetByFilter(ctx, document.Filter{SourceName: name})
	if err != nil {
		return 0, fmt.Errorf("failed to look up %q: %w", name, err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: %s", document.ErrNotFound, name)
	}
	if err := s.index.Delete(ctx, recordIDs(records)); err != nil {
		return 0, fmt.Errorf("failed to delete %q: %w", name, err)
	}

	s.logger.Info("Document deleted", "source_name", name, "chunks", len(records))
	s.publish(events.IndexDeleted, name, len(records))
	return len(records), nil
}

// DeleteAll 清空索引，返回删除的分块数
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	s.global.Lock()
	defer s.global.Unlock()

	records, err := s.index.GetByFilter(ctx, document.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list records: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.index.Delete(ctx, recordIDs(records)); err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}

	s.logger.Info("All documents deleted", "chunks", len(records))
	s.publish(events.IndexCleared, "", len(records))
	return len(records), nil
}

// ListSources 列出全部文档
func (s *Service) ListSources(ctx context.Context) ([]document.SourceSummary, error) {
	records, err := s.index.GetByFilter(ctx, document.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return document.Summarize(records), nil
}

// chunkFile 提取文件文本并按入库参数分块
func (s *Service) chunkFile(data []byte, filename string) (string, []string, error) {
	extracted, err := s.extractor.Extract(data, filename)
	if err != nil {
		return "", nil, err
	}
	chunks, err := s.chunker.Chunk(extracted.Text, s.chunker.IngestOptions())
	if err != nil {
		return "", nil, fmt.Errorf("failed to chunk %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return "", nil, fmt.Errorf("%w: %s", document.ErrEmptyExtraction, filename)
	}
	return string(extracted.Format), chunks, nil
}

// add 以新 id 与从 0 开始的序号写入分块
func (s *Service) add(ctx context.Context, name, format string, chunks []string) error {
	ingestedAt := s.now().Unix()
	ids := make([]string, len(chunks))
	metas := make([]document.Metadata, len(chunks))
	for i := range chunks {
		ids[i] = uuid.NewString()
		metas[i] = document.Metadata{
			SourceName:  name,
			ChunkIndex:  i,
			ContentType: format,
			IngestedAt:  ingestedAt,
		}
	}
	return s.index.Add(ctx, chunks, ids, metas)
}

// restore 尽力恢复更新前的记录
func (s *Service) restore(ctx context.Context, logger *slog.Logger, old []document.Record) {
	texts := make([]string, len(old))
	ids := make([]string, len(old))
	metas := make([]document.Metadata, len(old))
	for i, r := range old {
		texts[i], ids[i], metas[i] = r.Text, r.ID, r.Metadata
	}

	// 原请求可能已取消，恢复不受其影响
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	if err := s.index.Add(restoreCtx, texts, ids, metas); err != nil {
		logger.Error("Failed to restore previous document version", "chunks", len(old), "error", err)
		return
	}
	logger.Warn("Previous document version restored", "chunks", len(old))
}

func (s *Service) publish(action events.IndexAction, name string, chunks int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(&events.IndexEvent{
		Action:     action,
		SourceName: name,
		ChunkCount: chunks,
		EventTime:  s.now(),
	})
}

func recordIDs(records []document.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// IsClientError 是否为调用方输入导致的错误
func IsClientError(err error) bool {
	for _, target := range []error{
		document.ErrUnsupportedFormat,
		document.ErrEmptyExtraction,
		document.ErrDuplicate,
		document.ErrNotFound,
		document.ErrNoContentProvided,
		document.ErrConflictingContent,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
