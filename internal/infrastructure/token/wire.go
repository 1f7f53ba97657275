package token

import "github.com/google/wire"

// ProviderSet 令牌 ProviderSet
var ProviderSet = wire.NewSet(NewSealer)
