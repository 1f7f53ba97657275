// @title coursebot API
// @version 1.0
// @description 课程资料问答助手 API 服务
// @host localhost:19970
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey InstructorToken
// @in header
// @name Authorization
package main

import (
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // 配置的时区在精简镜像上也能解析

	"github.com/joho/godotenv"

	"github.com/coursebot/backend/internal/infrastructure/config"
	applog "github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/infrastructure/singleton"
	"github.com/coursebot/backend/internal/wire"
)

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	// 初始化日志系统
	applog.Init(nil)
	logger := applog.GetLogger()

	cfg, err := config.LoadDefault()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 同一端口上已有 coursebot 在运行时直接退出
	listener, err := singleton.CheckAndLock(cfg.Server.HTTPPort)
	if err != nil {
		logger.Error("Port is held by another program", "port", cfg.Server.HTTPPort, "error", err)
		os.Exit(1)
	}
	if listener == nil {
		logger.Info("Another coursebot instance is already running", "port", cfg.Server.HTTPPort)
		os.Exit(0)
	}
	_ = listener.Close()

	app, cleanup, err := wire.InitializeApp(cfg)
	if err != nil {
		logger.Error("Failed to initialize application",
			"error", err,
		)
		os.Exit(1)
	}
	defer cleanup()

	if err := app.Start(); err != nil {
		logger.Error("Failed to start application",
			"error", err,
		)
		os.Exit(1)
	}

	// 优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down application...")
	if err := app.Stop(); err != nil {
		logger.Error("Error during application shutdown",
			"error", err,
		)
	}
	logger.Info("Application stopped")
}
