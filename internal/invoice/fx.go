package invoice

import (
	"go.uber.org/fx"

	"github.com/edusuite/billing/internal/invoice/render"
	"github.com/edusuite/billing/internal/invoice/repository"
	"github.com/edusuite/billing/internal/invoice/service"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewService),
)
