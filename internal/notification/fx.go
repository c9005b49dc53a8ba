package notification

import (
	"github.com/edusuite/billing/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(service.NewDispatcher),
)
