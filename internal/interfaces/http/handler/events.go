package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/coursebot/backend/internal/infrastructure/websocket"
)

// EventsHandler 索引变化推送
type EventsHandler struct {
	hub *websocket.Hub
}

// NewEventsHandler 创建推送处理器
func NewEventsHandler(hub *websocket.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream 升级为 WebSocket，之后每次上传、替换、删除都推送一条 JSON 消息
// @Summary 订阅索引变化
// @Tags 课程资料
// @Security InstructorToken
// @Success 101 {object} events.IndexEvent
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	h.hub.ServeHTTP(c.Writer, c.Request)
}
