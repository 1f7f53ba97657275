package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/coursebot/backend/internal/application/retrieval"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/interfaces/http/response"
)

// SearchHandler 检索调试
type SearchHandler struct {
	retriever *retrieval.Service
	logger    *slog.Logger
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(retriever *retrieval.Service) *SearchHandler {
	return &SearchHandler{
		retriever: retriever,
		logger:    log.NewModuleLogger("http", "search"),
	}
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	K     int    `json:"k,omitempty"`
}

// SearchResponse 检索结果
type SearchResponse struct {
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
}

// Search 查看一个问题会检索到哪些分块
// @Summary 检索课程资料
// @Tags 检索
// @Accept json
// @Produce json
// @Security InstructorToken
// @Param body body SearchRequest true "检索请求"
// @Success 200 {object} response.Response{data=SearchResponse}
// @Failure 400 {object} response.ErrorResponse
// @Router /search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if req.K <= 0 {
		req.K = h.retriever.DefaultTopK()
	}

	results := h.retriever.Retrieve(c.Request.Context(), req.Query, req.K)
	if results == nil {
		results = []retrieval.Result{}
	}
	response.Success(c, SearchResponse{Results: results, Count: len(results)})
}
