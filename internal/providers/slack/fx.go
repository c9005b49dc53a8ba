package slack

import (
	"github.com/edusuite/billing/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the webhook provider when a webhook URL is
// configured and a no-op otherwise, so callers never need nil checks.
func NewFromConfig(cfg config.Config) Provider {
	if cfg.SlackWebhookURL == "" {
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.SlackWebhookURL)
}
