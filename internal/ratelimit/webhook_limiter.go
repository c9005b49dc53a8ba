package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/edusuite/billing/internal/config"
)

const keyWebhookIngest = "webhook:ingest:%s:%s"

// WebhookLimiter throttles gateway webhook deliveries per provider and
// source address. Gateways retry aggressively on 5xx, so the bucket is
// sized to absorb a redelivery burst without admitting a flood.
type WebhookLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWebhookLimiter(cfg config.Config, client *redis.Client) *WebhookLimiter {
	if client == nil {
		return nil
	}
	rate := cfg.WebhookRateLimitRPS
	if rate <= 0 {
		rate = 20
	}
	burst := cfg.WebhookRateLimitBurst
	if burst <= 0 {
		burst = 60
	}
	return &WebhookLimiter{
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WebhookLimiter) Allow(ctx context.Context, provider, remoteIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	provider = strings.TrimSpace(provider)
	remoteIP = strings.TrimSpace(remoteIP)
	if remoteIP == "" {
		remoteIP = "unknown"
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookIngest, provider, remoteIP), l.rate, l.burst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
