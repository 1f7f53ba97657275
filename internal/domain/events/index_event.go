package events

import "time"

// IndexAction 索引变化的动作
type IndexAction string

const (
	IndexUploaded IndexAction = "uploaded"
	IndexUpdated  IndexAction = "updated"
	IndexDeleted  IndexAction = "deleted"
	IndexCleared  IndexAction = "cleared"
)

// IndexEvent 课程资料入库、替换或删除完成
type IndexEvent struct {
	Action IndexAction `json:"action"`
	// SourceName 文档名，清空索引时为空
	SourceName string `json:"source_name,omitempty"`
	// ChunkCount 新写入或删除的分块数
	ChunkCount int       `json:"chunk_count"`
	EventTime  time.Time `json:"time"`
}

// Type 实现 Event 接口
func (e *IndexEvent) Type() EventType {
	return IndexChanged
}

// Timestamp 实现 Event 接口
func (e *IndexEvent) Timestamp() time.Time {
	return e.EventTime
}
