package server

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window counter for the unauthenticated public
// routes. Windows live in process memory; each API node enforces its
// own budget, which is acceptable for abuse damping on parent-facing
// pages.
type rateLimiter struct {
	max    int
	window time.Duration
	mu     sync.Mutex
	hits   map[string]rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:    max,
		window: window,
		hits:   make(map[string]rateWindow),
	}
}

// Allow admits the request when the key's window has budget left. An
// empty key admits everything so callers can opt out per request.
func (r *rateLimiter) Allow(key string) bool {
	if r == nil || key == "" {
		return true
	}

	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.hits) > rateLimiterPurgeThreshold {
		r.purgeExpired(now)
	}

	w, ok := r.hits[key]
	if !ok || now.After(w.resetAt) {
		r.hits[key] = rateWindow{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if w.count >= r.max {
		return false
	}
	w.count++
	r.hits[key] = w
	return true
}

const rateLimiterPurgeThreshold = 10_000

func (r *rateLimiter) purgeExpired(now time.Time) {
	for key, w := range r.hits {
		if now.After(w.resetAt) {
			delete(r.hits, key)
		}
	}
}
