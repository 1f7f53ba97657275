package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursebot/backend/internal/application/chat"
	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/interfaces/http/middleware"
	"github.com/coursebot/backend/internal/interfaces/http/response"
)

// ChatHandler 课程问答
type ChatHandler struct {
	chat         *chat.Service
	cookieName   string
	cookieMaxAge int
	logger       *slog.Logger
}

// NewChatHandler 创建问答处理器
func NewChatHandler(svc *chat.Service, cfg *config.UsageConfig) *ChatHandler {
	name := cfg.CookieName
	if name == "" {
		name = "chat_usage"
	}
	maxAge := cfg.CookieMaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}
	return &ChatHandler{
		chat:         svc,
		cookieName:   name,
		cookieMaxAge: maxAge,
		logger:       log.NewModuleLogger("http", "chat"),
	}
}

// AskRequest 提问请求，字段名与前端保持一致
type AskRequest struct {
	UserContent    string `json:"user_content"`
	OpenAIModel    string `json:"openai_model"`
	ConversationID string `json:"currentConversationId"`
}

// Ask 提问
// @Summary 向助教提问
// @Description 读取并更新 chat_usage Cookie；内容被审核拦截时返回拒答轮次
// @Tags 问答
// @Accept json
// @Produce json
// @Param X-User-ID header string true "调用方身份"
// @Param body body AskRequest true "提问内容"
// @Success 200 {object} response.Response{data=chat.AskResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Failure 504 {object} response.ErrorResponse
// @Router /chat/ask [post]
func (h *ChatHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	usageToken, _ := c.Cookie(h.cookieName)
	res, err := h.chat.Ask(c.Request.Context(), chat.AskRequest{
		Identity:       middleware.Identity(c),
		ConversationID: req.ConversationID,
		Persona:        req.OpenAIModel,
		Text:           req.UserContent,
		UsageToken:     usageToken,
	})
	// 用量检查执行过就要回写 Cookie，失败的请求也不例外
	if res != nil && res.UsageToken != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookieName, res.UsageToken, h.cookieMaxAge, "/", "", false, true)
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, res)
}

// Conversations 当前用户的对话列表
// @Summary 对话列表
// @Tags 问答
// @Produce json
// @Param X-User-ID header string true "调用方身份"
// @Success 200 {object} response.Response{data=[]conversation.Conversation}
// @Router /chat/conversations [get]
func (h *ChatHandler) Conversations(c *gin.Context) {
	response.Success(c, h.chat.Conversations(middleware.Identity(c)))
}

// TranscriptResponse 对话记录
type TranscriptResponse struct {
	ConversationID string              `json:"conversation_id"`
	Transcript     []conversation.Turn `json:"transcript"`
}

// Transcript 单个对话的可见记录
// @Summary 对话记录
// @Tags 问答
// @Produce json
// @Param X-User-ID header string true "调用方身份"
// @Param id path string true "对话ID"
// @Success 200 {object} response.Response{data=TranscriptResponse}
// @Failure 404 {object} response.ErrorResponse
// @Router /chat/conversations/{id} [get]
func (h *ChatHandler) Transcript(c *gin.Context) {
	id := c.Param("id")
	turns, err := h.chat.Transcript(middleware.Identity(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, TranscriptResponse{ConversationID: id, Transcript: turns})
}

// Personas 人设列表
// @Summary 人设列表
// @Tags 问答
// @Produce json
// @Success 200 {object} response.Response{data=[]conversation.Persona}
// @Router /personas [get]
func (h *ChatHandler) Personas(c *gin.Context) {
	response.Success(c, h.chat.Personas())
}
