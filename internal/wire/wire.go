//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"github.com/coursebot/backend/internal/application"
	"github.com/coursebot/backend/internal/infrastructure"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/interfaces"
)

// InitializeApp 初始化服务端（HTTP + MCP + 收件箱）
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		NewApp,
	)
	return nil, nil, nil
}

// InitializeToolkit 初始化命令行使用的服务
func InitializeToolkit(cfg *config.Config) (*Toolkit, func(), error) {
	wire.Build(
		infrastructure.CoreSet,
		application.ProviderSet,
		NewToolkit,
	)
	return nil, nil, nil
}
