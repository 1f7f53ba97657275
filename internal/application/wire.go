package application

import (
	"github.com/google/wire"

	"github.com/coursebot/backend/internal/application/chat"
	"github.com/coursebot/backend/internal/application/ingest"
	"github.com/coursebot/backend/internal/application/retrieval"
	"github.com/coursebot/backend/internal/application/usage"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	ingest.ProviderSet,
	retrieval.ProviderSet,
	usage.ProviderSet,
	chat.ProviderSet,
)
