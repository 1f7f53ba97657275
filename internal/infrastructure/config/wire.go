package config

import "github.com/google/wire"

// ProviderSet 配置 ProviderSet
var ProviderSet = wire.NewSet(
	NewDatabaseConfig,
	NewServerConfig,
	NewOpenAIConfig,
	NewEmbeddingConfig,
	NewChunkingConfig,
	NewIndexConfig,
	NewRetrievalConfig,
	NewChatConfig,
	NewUsageConfig,
	NewInboxConfig,
)
