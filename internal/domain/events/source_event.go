package events

import "time"

// SourceFileEvent 收件箱文件变更事件
type SourceFileEvent struct {
	// EventType 事件类型
	EventType EventType
	// SourceName 文档名（文件名，不含目录）
	SourceName string
	// FilePath 文件完整路径
	FilePath string
	// ModTime 文件最后修改时间，删除事件为零值
	ModTime time.Time
	// FileSize 文件大小（字节）
	FileSize int64
	// EventTime 事件发生时间
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *SourceFileEvent) Type() EventType {
	return e.EventType
}

// Timestamp 实现 Event 接口
func (e *SourceFileEvent) Timestamp() time.Time {
	return e.EventTime
}
