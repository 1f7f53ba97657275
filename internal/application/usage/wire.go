package usage

import "github.com/google/wire"

// ProviderSet 用量 ProviderSet
var ProviderSet = wire.NewSet(NewLimiter, NewCalendar)
