package watcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coursebot/backend/internal/infrastructure/config"
)

// Checkpoint 记录每个收件箱目录最近一次完整扫描的时间
// 换了收件箱目录后对应记录为空，启动时会全量补发
type Checkpoint struct {
	mu    sync.Mutex
	path  string
	dirs  map[string]time.Time
	ready bool
}

// NewCheckpoint 使用数据目录下的 inbox_scan.json
func NewCheckpoint() *Checkpoint {
	return NewCheckpointAt(config.DataPath("inbox_scan.json"))
}

// NewCheckpointAt 使用指定文件，文件在第一次访问时读取
func NewCheckpointAt(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

// Since 返回 dir 上次扫描的时间，从未扫描过时为零值
func (c *Checkpoint) Since(dir string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	return c.dirs[key(dir)]
}

// Mark 记录 dir 在 at 时刻完成扫描并写盘
func (c *Checkpoint) Mark(dir string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	c.dirs[key(dir)] = at.UTC()

	data, err := json.MarshalIndent(c.dirs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return os.Rename(tmp, c.path)
}

func (c *Checkpoint) loadLocked() {
	if c.ready {
		return
	}
	c.ready = true
	c.dirs = make(map[string]time.Time)

	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	// 损坏的文件按从未扫描处理
	_ = json.Unmarshal(data, &c.dirs)
	if c.dirs == nil {
		c.dirs = make(map[string]time.Time)
	}
}

func key(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(dir)
}
