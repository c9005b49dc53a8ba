package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/edusuite/billing/internal/config"
	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
	"github.com/edusuite/billing/internal/payment/adapters"
	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc *paymentservice.Service
	Adapters   *adapters.Registry
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service turns raw gateway webhook deliveries into reconciliation
// outcomes. Signature verification happens before anything else is
// done with the payload.
type Service struct {
	log        *zap.Logger
	paymentSvc *paymentservice.Service
	adapters   *adapters.Registry
	cfg        config.Config
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
		adapters:   p.Adapters,
		cfg:        p.Cfg,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider, s.adapterConfig(provider))
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook.signature_rejected", zap.String("provider", provider))
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Debug("webhook.event_ignored", zap.String("provider", provider))
			return nil
		}
		return err
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.Type)
	}
	return s.paymentSvc.ProcessEvent(ctx, event)
}

func (s *Service) adapterConfig(provider string) paymentdomain.AdapterConfig {
	cfg := paymentdomain.AdapterConfig{Provider: provider}
	if provider == "paystack" {
		cfg.SecretKey = s.cfg.Paystack.SecretKey
		cfg.WebhookSecret = s.cfg.Paystack.WebhookSecret
	}
	return cfg
}
