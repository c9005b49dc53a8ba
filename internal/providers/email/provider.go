package email

import "context"

// Provider sends HTML mail to parents. Bodies are composed by the
// notification dispatcher, so the interface stays a single call.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider is used when no SMTP host is configured, e.g. in tests
// and local development.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
