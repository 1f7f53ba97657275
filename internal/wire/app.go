package wire

import (
	"log/slog"

	"github.com/coursebot/backend/internal/application/ingest"
	"github.com/coursebot/backend/internal/domain/events"
	"github.com/coursebot/backend/internal/infrastructure/discovery"
	applog "github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/infrastructure/watcher"
	"github.com/coursebot/backend/internal/interfaces/http"
	"github.com/coursebot/backend/internal/interfaces/mcp"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer *http.HTTPServer
	MCPServer  *mcp.MCPServer
	ingest     *ingest.Service
	logger     *slog.Logger

	// 收件箱监听相关
	eventBus    events.EventBus
	fileWatcher *watcher.FileWatcher
	unsubscribe func()

	// 局域网广播，未开启时为 nil
	advertiser *discovery.Advertiser
}

// NewApp 创建应用实例
// fileWatcher 在未配置收件箱目录时为 nil，advertiser 在未开启广播时为 nil
func NewApp(
	httpServer *http.HTTPServer,
	mcpServer *mcp.MCPServer,
	ingestSvc *ingest.Service,
	eventBus events.EventBus,
	fileWatcher *watcher.FileWatcher,
	advertiser *discovery.Advertiser,
) *App {
	return &App{
		HTTPServer:  httpServer,
		MCPServer:   mcpServer,
		ingest:      ingestSvc,
		logger:      applog.NewModuleLogger("app", "main"),
		eventBus:    eventBus,
		fileWatcher: fileWatcher,
		advertiser:  advertiser,
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting coursebot backend application")

	// 先订阅再启动监听，启动时补发的事件不会丢失
	if a.eventBus != nil {
		a.unsubscribe = a.ingest.Subscribe(a.eventBus)
		a.logger.Info("Ingest service subscribed to event bus")
	}
	if a.fileWatcher != nil {
		if err := a.fileWatcher.Start(); err != nil {
			a.logger.Error("Failed to start inbox watcher",
				"error", err,
			)
		} else {
			a.logger.Info("Inbox watcher started successfully")
		}
	}

	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	if a.advertiser != nil {
		if err := a.advertiser.Start(); err != nil {
			a.logger.Warn("Failed to advertise on LAN",
				"error", err,
			)
		}
	}

	a.logger.Info("Coursebot backend application started successfully")
	return nil
}

// Stop 停止所有服务，数据库与索引连接由注入器的 cleanup 释放
func (a *App) Stop() error {
	a.logger.Info("Stopping coursebot backend application")

	if a.advertiser != nil {
		a.advertiser.Stop()
	}
	if a.fileWatcher != nil {
		a.fileWatcher.Stop()
		a.logger.Info("Inbox watcher stopped")
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.eventBus != nil {
		a.eventBus.Close()
		a.logger.Info("Event bus closed")
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
		return err
	}

	a.logger.Info("Coursebot backend application stopped successfully")
	return nil
}
