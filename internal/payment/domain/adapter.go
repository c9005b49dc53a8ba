package domain

import (
	"context"
	"net/http"
)

// AdapterConfig carries the credentials an adapter needs to verify and
// parse webhook traffic for one gateway.
type AdapterConfig struct {
	Provider      string
	SecretKey     string
	WebhookSecret string
}

// PaymentAdapter normalizes one gateway's webhook format. Verify must
// reject any payload whose signature does not match before Parse runs.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// AdapterFactory builds adapters for a named provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}
