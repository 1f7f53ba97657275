// Package events 定义领域事件类型和接口
// 用于收件箱目录与入库服务之间的解耦通信
package events

import "time"

// EventType 事件类型标识
type EventType string

// 课程文件相关事件类型
const (
	// SourceFileCreated 收件箱中出现新文件
	SourceFileCreated EventType = "source.file.created"
	// SourceFileModified 收件箱中的文件被修改
	SourceFileModified EventType = "source.file.modified"
	// SourceFileRemoved 收件箱中的文件被删除或移走
	SourceFileRemoved EventType = "source.file.removed"
	// SourceFileDiscovered 启动扫描发现的上次运行后变化的文件
	SourceFileDiscovered EventType = "source.file.discovered"
)

// SourceFileEventTypes 全部课程文件事件
var SourceFileEventTypes = []EventType{
	SourceFileCreated,
	SourceFileModified,
	SourceFileRemoved,
	SourceFileDiscovered,
}

// Event 领域事件接口
// 所有事件类型都必须实现此接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Timestamp 返回事件发生时间
	Timestamp() time.Time
}

// IndexChanged 索引中的课程资料发生变化
const IndexChanged EventType = "index.source.changed"
