package ingest

import "github.com/google/wire"

// ProviderSet 入库 ProviderSet
var ProviderSet = wire.NewSet(NewService)
