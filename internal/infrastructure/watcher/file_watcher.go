package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coursebot/backend/internal/domain/events"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/fsnotify/fsnotify"
)

// WatchConfig FileWatcher 配置
type WatchConfig struct {
	// InboxDir 收件箱目录，放入其中的课程文件会被自动入库
	InboxDir string
	// DebounceDelay 防抖延迟，编辑器保存时常触发多次写事件
	DebounceDelay time.Duration
	// Accept 判断文件名是否需要处理，为空时处理全部普通文件
	Accept func(name string) bool
}

// FileWatcher 收件箱目录监听器
type FileWatcher struct {
	config   WatchConfig
	eventBus events.EventBus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// 防抖相关：同一文件在窗口内的事件合并为一次
	debounceTimers map[string]*time.Timer
	pendingOps     map[string]fsnotify.Op
	debounceMu     sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	checkpoint *Checkpoint
}

// NewFileWatcher 创建文件监听器
func NewFileWatcher(config WatchConfig, eventBus events.EventBus, checkpoint *Checkpoint) (*FileWatcher, error) {
	if config.InboxDir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		config:         config,
		eventBus:       eventBus,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "file_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		pendingOps:     make(map[string]fsnotify.Op),
		stopCh:         make(chan struct{}),
		checkpoint:     checkpoint,
	}, nil
}

// Start 启动监听：先补发上次运行后变化的文件，再监听目录
func (fw *FileWatcher) Start() error {
	fw.logger.Info("Starting inbox watcher", "inbox_dir", fw.config.InboxDir)

	if err := os.MkdirAll(fw.config.InboxDir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}

	fw.performScan()

	if err := fw.watcher.Add(fw.config.InboxDir); err != nil {
		return fmt.Errorf("failed to watch inbox directory: %w", err)
	}

	fw.wg.Add(1)
	go fw.watchLoop()

	return nil
}

// Stop 停止文件监听
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		fw.logger.Info("Stopping inbox watcher")

		close(fw.stopCh)
		fw.watcher.Close()
		fw.wg.Wait()

		fw.debounceMu.Lock()
		for _, timer := range fw.debounceTimers {
			timer.Stop()
		}
		fw.debounceMu.Unlock()

		fw.logger.Info("Inbox watcher stopped")
	})
}

// performScan 发布自上次扫描以来修改过的文件
func (fw *FileWatcher) performScan() {
	startTime := time.Now()
	lastScan := fw.checkpoint.Since(fw.config.InboxDir)

	entries, err := os.ReadDir(fw.config.InboxDir)
	if err != nil {
		fw.logger.Error("Failed to read inbox directory", "error", err)
		return
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !fw.accept(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !lastScan.IsZero() && !info.ModTime().After(lastScan) {
			continue
		}

		fw.eventBus.Publish(&events.SourceFileEvent{
			EventType:  events.SourceFileDiscovered,
			SourceName: entry.Name(),
			FilePath:   filepath.Join(fw.config.InboxDir, entry.Name()),
			ModTime:    info.ModTime(),
			FileSize:   info.Size(),
			EventTime:  time.Now(),
		})
		count++
	}

	if err := fw.checkpoint.Mark(fw.config.InboxDir, startTime); err != nil {
		fw.logger.Warn("Failed to save inbox checkpoint", "error", err)
	}

	fw.logger.Info("Inbox scan completed",
		"files", count,
		"since", lastScan,
		"duration", time.Since(startTime),
	)
}

// watchLoop 事件监听循环
func (fw *FileWatcher) watchLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 合并事件并重置防抖定时器
func (fw *FileWatcher) handleFsEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !fw.accept(name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	fw.pendingOps[event.Name] |= event.Op

	if timer, exists := fw.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	path := event.Name
	fw.debounceTimers[path] = time.AfterFunc(fw.config.DebounceDelay, func() {
		fw.debounceMu.Lock()
		op := fw.pendingOps[path]
		delete(fw.pendingOps, path)
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()

		fw.emitSourceFileEvent(path, op)
	})
}

// emitSourceFileEvent 根据合并后的操作和文件现状决定事件类型
func (fw *FileWatcher) emitSourceFileEvent(path string, op fsnotify.Op) {
	info, statErr := os.Stat(path)

	var eventType events.EventType
	switch {
	case statErr != nil:
		// 删除或移出目录
		eventType = events.SourceFileRemoved
	case info.IsDir():
		return
	case op.Has(fsnotify.Create):
		eventType = events.SourceFileCreated
	default:
		eventType = events.SourceFileModified
	}

	ev := &events.SourceFileEvent{
		EventType:  eventType,
		SourceName: filepath.Base(path),
		FilePath:   path,
		EventTime:  time.Now(),
	}
	if statErr == nil {
		ev.ModTime = info.ModTime()
		ev.FileSize = info.Size()
	}
	fw.eventBus.Publish(ev)

	fw.logger.Debug("Source file event emitted",
		"type", eventType,
		"source_name", ev.SourceName,
	)
}

func (fw *FileWatcher) accept(name string) bool {
	// 忽略隐藏文件与编辑器临时文件
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") || strings.HasSuffix(name, "~") {
		return false
	}
	if fw.config.Accept == nil {
		return true
	}
	return fw.config.Accept(name)
}
