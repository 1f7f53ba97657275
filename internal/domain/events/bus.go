package events

// Handler 处理一个事件，返回的错误只记录日志
type Handler interface {
	HandleEvent(event Event) error
}

// HandlerFunc 让普通函数满足 Handler
type HandlerFunc func(event Event) error

func (f HandlerFunc) HandleEvent(event Event) error {
	return f(event)
}

// EventBus 进程内事件总线
//
// 收件箱监听器发布 SourceFileEvent，入库服务订阅后执行上传或删除；
// 入库服务完成后发布 IndexEvent，由 WebSocket 推送给讲师端。
// Publish 不阻塞调用方，Close 之后发布的事件被丢弃，
// Close 会等待已经在处理中的事件结束。
type EventBus interface {
	Subscribe(eventType EventType, handler Handler) (unsubscribe func())
	SubscribeMultiple(eventTypes []EventType, handler Handler) (unsubscribe func())
	Publish(event Event)
	Close()
}
