package slack

import "context"

// Provider posts operations alerts. channelID may be empty, in which
// case the webhook's default channel receives the message.
type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

// NoOpProvider is used when no webhook URL is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}
