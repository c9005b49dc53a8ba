package school

import (
	"github.com/edusuite/billing/internal/school/repository"
	"github.com/edusuite/billing/internal/school/service"
	"go.uber.org/fx"
)

var Module = fx.Module("school.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
