package wire

import (
	"github.com/coursebot/backend/internal/application/chat"
	"github.com/coursebot/backend/internal/application/ingest"
	"github.com/coursebot/backend/internal/application/retrieval"
	"github.com/coursebot/backend/internal/application/usage"
	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/embedding"
	"github.com/coursebot/backend/internal/infrastructure/llm"
)

// Toolkit 命令行使用的服务集合，不启动 HTTP 与收件箱
type Toolkit struct {
	Config    *config.Config
	Ingest    *ingest.Service
	Retriever *retrieval.Service
	Chat      *chat.Service
	Limiter   *usage.Limiter
	Index     document.Index
	Embedder  *embedding.Client
	LLM       *llm.Client
}

// NewToolkit 创建命令行服务集合
func NewToolkit(
	cfg *config.Config,
	ingestSvc *ingest.Service,
	retriever *retrieval.Service,
	chatSvc *chat.Service,
	limiter *usage.Limiter,
	idx document.Index,
	embedder *embedding.Client,
	llmClient *llm.Client,
) *Toolkit {
	return &Toolkit{
		Config:    cfg,
		Ingest:    ingestSvc,
		Retriever: retriever,
		Chat:      chatSvc,
		Limiter:   limiter,
		Index:     idx,
		Embedder:  embedder,
		LLM:       llmClient,
	}
}
