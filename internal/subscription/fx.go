package subscription

import (
	"go.uber.org/fx"

	"github.com/edusuite/billing/internal/subscription/repository"
	"github.com/edusuite/billing/internal/subscription/service"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
