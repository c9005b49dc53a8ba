package discount

import (
	"github.com/edusuite/billing/internal/discount/repository"
	"github.com/edusuite/billing/internal/discount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("discount.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
