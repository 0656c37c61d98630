package authorization

import "go.uber.org/fx"

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
	fx.Provide(NewKeyAuthenticator),
	fx.Provide(func(a *KeyAuthenticator) Authenticator { return a }),
)
