package infrastructure

import (
	"github.com/google/wire"

	"github.com/coursebot/backend/internal/infrastructure/chunker"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/discovery"
	"github.com/coursebot/backend/internal/infrastructure/embedding"
	"github.com/coursebot/backend/internal/infrastructure/extractor"
	"github.com/coursebot/backend/internal/infrastructure/index"
	"github.com/coursebot/backend/internal/infrastructure/llm"
	"github.com/coursebot/backend/internal/infrastructure/token"
	"github.com/coursebot/backend/internal/infrastructure/tokenizer"
	"github.com/coursebot/backend/internal/infrastructure/watcher"
	"github.com/coursebot/backend/internal/infrastructure/websocket"
)

// CoreSet 服务端与命令行共用的基础设施
var CoreSet = wire.NewSet(
	config.ProviderSet,
	tokenizer.ProviderSet,
	extractor.ProviderSet,
	chunker.ProviderSet,
	embedding.ProviderSet,
	index.ProviderSet,
	llm.ProviderSet,
	token.ProviderSet,
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	CoreSet,
	watcher.ProviderSet,
	websocket.ProviderSet,
	discovery.ProviderSet,
	ProvideAcceptFunc,
)

// ProvideAcceptFunc 收件箱只处理能提取文本的文件
func ProvideAcceptFunc(ext *extractor.Extractor) watcher.AcceptFunc {
	return ext.Supports
}
