package user

import (
	"github.com/smallbiznis/inkwell/internal/user/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideStatusWriter),
	fx.Provide(repository.ProvidePaymentActivator),
)
