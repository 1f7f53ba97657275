package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/domain/events"
)

// inboxTimeout 单个收件箱事件的处理时限
const inboxTimeout = 10 * time.Minute

// Subscribe 订阅收件箱事件，之后的索引变化也发布到同一总线
// 需要在处理任何请求之前调用，返回取消订阅函数
func (s *Service) Subscribe(bus events.EventBus) func() {
	s.bus = bus
	return bus.SubscribeMultiple(events.SourceFileEventTypes, events.HandlerFunc(s.HandleSourceFileEvent))
}

// HandleSourceFileEvent 把收件箱文件变化同步到索引
func (s *Service) HandleSourceFileEvent(event events.Event) error {
	e, ok := event.(*events.SourceFileEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	ctx, cancel := context.WithTimeout(context.Background(), inboxTimeout)
	defer cancel()
	logger := s.logger.With("source_name", e.SourceName, "event", e.EventType)

	var err error
	switch e.EventType {
	case events.SourceFileRemoved:
		_, err = s.DeleteSource(ctx, e.SourceName)
		if errors.Is(err, document.ErrNotFound) {
			err = nil
		}
	case events.SourceFileCreated, events.SourceFileDiscovered:
		err = s.syncFile(ctx, e, false)
	case events.SourceFileModified:
		err = s.syncFile(ctx, e, true)
	default:
		return fmt.Errorf("unexpected event type %s", e.EventType)
	}

	if err != nil {
		if IsClientError(err) {
			logger.Warn("Inbox file rejected", "error", err)
		} else {
			logger.Error("Failed to sync inbox file", "error", err)
		}
		return err
	}
	logger.Info("Inbox file synced")
	return nil
}

// syncFile 新文件先上传、已存在则更新；修改事件先更新、不存在则上传
func (s *Service) syncFile(ctx context.Context, e *events.SourceFileEvent, preferUpdate bool) error {
	data, err := os.ReadFile(e.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", e.FilePath, err)
	}

	update := func() error {
		_, err := s.UpdateSource(ctx, e.SourceName, UpdateInput{Data: data, DataFilename: e.SourceName})
		return err
	}
	upload := func() error {
		_, err := s.Upload(ctx, data, e.SourceName)
		return err
	}

	if preferUpdate {
		if err := update(); !errors.Is(err, document.ErrNotFound) {
			return err
		}
		return upload()
	}
	if err := upload(); !errors.Is(err, document.ErrDuplicate) {
		return err
	}
	return update()
}
