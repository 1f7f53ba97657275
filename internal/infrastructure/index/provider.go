// Package index 按配置选择向量索引后端
package index

import (
	"context"
	"fmt"

	"github.com/google/wire"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/infrastructure/storage"
	"github.com/coursebot/backend/internal/infrastructure/vector"
)

// ProviderSet 索引 ProviderSet
var ProviderSet = wire.NewSet(Provide)

// Pinger 可检查连通性的索引
type Pinger interface {
	Ping(ctx context.Context) error
}

// Provide 按 index.backend 创建索引，返回的 cleanup 释放底层连接
func Provide(dbCfg *config.DatabaseConfig, cfg *config.IndexConfig, embedder document.Embedder) (document.Index, func(), error) {
	logger := log.NewModuleLogger("index", "provider")

	switch cfg.Backend {
	case config.BackendQdrant:
		idx, cleanup, err := vector.NewQdrantIndex(cfg, embedder)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Qdrant index",
			"host", cfg.Qdrant.Host,
			"port", cfg.Qdrant.Port,
			"collection", cfg.Collection,
		)
		return idx, cleanup, nil
	case config.BackendSQLite, "":
		db, cleanup, err := storage.ProvideDB(dbCfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using SQLite index",
			"path", dbCfg.Path,
			"collection", cfg.Collection,
		)
		return storage.NewSQLiteIndex(db, cfg, embedder), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// Ping 检查索引连通性，不支持检查的后端视为可用
func Ping(ctx context.Context, idx document.Index) error {
	if p, ok := idx.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
