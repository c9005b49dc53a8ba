package feeschedule

import (
	"github.com/edusuite/billing/internal/feeschedule/repository"
	"github.com/edusuite/billing/internal/feeschedule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feeschedule.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
