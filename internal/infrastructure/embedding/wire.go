package embedding

import (
	"github.com/coursebot/backend/internal/domain/document"
	"github.com/google/wire"
)

// ProviderSet 向量化 ProviderSet
var ProviderSet = wire.NewSet(
	NewClient,
	wire.Bind(new(document.Embedder), new(*Client)),
)
