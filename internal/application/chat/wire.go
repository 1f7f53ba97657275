package chat

import (
	"github.com/google/wire"

	"github.com/coursebot/backend/internal/application/retrieval"
	appUsage "github.com/coursebot/backend/internal/application/usage"
	"github.com/coursebot/backend/internal/infrastructure/llm"
)

// ProviderSet 对话 ProviderSet
var ProviderSet = wire.NewSet(
	NewConversationStore,
	NewAssembler,
	NewPersonaTable,
	NewService,
	wire.Bind(new(Completer), new(*llm.Client)),
	wire.Bind(new(Moderator), new(*llm.Client)),
	wire.Bind(new(Retriever), new(*retrieval.Service)),
	wire.Bind(new(UsageLimiter), new(*appUsage.Limiter)),
)
