package payment

import (
	"go.uber.org/fx"

	"github.com/edusuite/billing/internal/payment/adapters"
	"github.com/edusuite/billing/internal/payment/adapters/paystack"
	"github.com/edusuite/billing/internal/payment/repository"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	"github.com/edusuite/billing/internal/payment/webhook"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			paystack.NewFactory(),
		)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
