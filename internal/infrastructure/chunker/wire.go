package chunker

import "github.com/google/wire"

// ProviderSet 分块 ProviderSet
var ProviderSet = wire.NewSet(New)
