package server

import (
	"sync"
	"time"

	gwpaystack "github.com/edusuite/billing/internal/gateway/paystack"
)

// banksCache holds the gateway's bank directory per currency. The list
// changes rarely and the gateway rate-limits lookups, so admin screens
// read a cached copy.
type banksCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]banksCacheEntry
}

type banksCacheEntry struct {
	expiresAt time.Time
	banks     []gwpaystack.Bank
}

func newBanksCache(ttl time.Duration) *banksCache {
	return &banksCache{
		ttl:   ttl,
		items: make(map[string]banksCacheEntry),
	}
}

func (c *banksCache) Get(currency string) ([]gwpaystack.Bank, bool) {
	if c == nil || currency == "" {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.items[currency]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().UTC().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, currency)
		c.mu.Unlock()
		return nil, false
	}
	banks := append([]gwpaystack.Bank(nil), entry.banks...)
	return banks, true
}

func (c *banksCache) Set(currency string, banks []gwpaystack.Bank) {
	if c == nil || currency == "" {
		return
	}
	cloned := append([]gwpaystack.Bank(nil), banks...)
	c.mu.Lock()
	c.items[currency] = banksCacheEntry{
		expiresAt: time.Now().UTC().Add(c.ttl),
		banks:     cloned,
	}
	c.mu.Unlock()
}
