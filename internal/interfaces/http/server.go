package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/interfaces/http/handler"
	"github.com/coursebot/backend/internal/interfaces/http/middleware"
	"github.com/coursebot/backend/internal/interfaces/mcp"

	_ "github.com/coursebot/backend/docs" // Swagger docs
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	// server 在构造时创建，Start 与 Stop 只读取它
	server *http.Server
	logger *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.ServerConfig,
	documentHandler *handler.DocumentHandler,
	chatHandler *handler.ChatHandler,
	searchHandler *handler.SearchHandler,
	eventsHandler *handler.EventsHandler,
	mcpServer *mcp.MCPServer,
) *HTTPServer {
	logger := log.NewModuleLogger("http", "server")

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.EnsureUTF8Body(),
	)
	instructor := middleware.RequireInstructor(cfg.InstructorToken)

	api := router.Group("/api/v1")
	{
		// 课程资料
		documents := api.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.POST("", instructor, documentHandler.Upload)
			documents.PUT("/:name", instructor, documentHandler.Update)
			documents.DELETE("/:name", instructor, documentHandler.Delete)
			documents.DELETE("", instructor, documentHandler.DeleteAll)
		}

		api.POST("/search", instructor, searchHandler.Search)
		api.GET("/events", instructor, eventsHandler.Stream)
		api.GET("/personas", chatHandler.Personas)

		// 问答
		chat := api.Group("/chat", middleware.RequireIdentity())
		{
			chat.POST("/ask", chatHandler.Ask)
			chat.GET("/conversations", chatHandler.Conversations)
			chat.GET("/conversations/:id", chatHandler.Transcript)
		}
	}

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// MCP SSE 端点，与 /search 一样只对教师开放
	if mcpServer != nil {
		router.Any("/mcp/sse", instructor, gin.WrapH(mcpServer.GetHandler()))
	}

	return &HTTPServer{
		router:   router,
		httpPort: cfg.HTTPPort,
		server: &http.Server{
			Addr:              cfg.HTTPPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler 返回路由，便于测试
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start 启动服务器，阻塞直到服务器关闭
// 已经 Stop 过的服务器不会再监听，直接返回 nil
func (s *HTTPServer) Start() error {
	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭，可与 Start 并发调用
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
