package watcher

import (
	"github.com/coursebot/backend/internal/domain/events"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/google/wire"
)

// ProviderSet 监听基础设施 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideEventBus,
	NewCheckpoint,
	ProvideFileWatcher,
)

// ProvideEventBus 提供事件总线实例
func ProvideEventBus() events.EventBus {
	return NewEventBus()
}

// ProvideFileWatcher 提供收件箱监听器，未配置目录时返回 nil
func ProvideFileWatcher(cfg *config.InboxConfig, eventBus events.EventBus, checkpoint *Checkpoint, accept AcceptFunc) (*FileWatcher, error) {
	if cfg.Dir == "" {
		return nil, nil
	}
	return NewFileWatcher(WatchConfig{
		InboxDir:      cfg.Dir,
		DebounceDelay: cfg.Debounce,
		Accept:        accept,
	}, eventBus, checkpoint)
}

// AcceptFunc 判断收件箱文件是否需要处理
type AcceptFunc func(name string) bool
