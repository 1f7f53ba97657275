package retrieval

import "github.com/google/wire"

// ProviderSet 检索 ProviderSet
var ProviderSet = wire.NewSet(NewService)
