package reference

import "go.uber.org/fx"

// Module exposes the static bank and currency registry.
var Module = fx.Module("reference.repository",
	fx.Provide(NewRepository),
)
