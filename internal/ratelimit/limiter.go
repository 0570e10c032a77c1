// Package ratelimit bounds abuse of sensitive endpoints with fixed-window
// counters in the shared ephemeral store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/store"
)

// Limiter enforces fixed-window limits keyed by (purpose, identifier).
type Limiter struct {
	store store.Store
}

// New constructs a limiter over the given store.
func New(st store.Store) *Limiter {
	return &Limiter{store: st}
}

// Allow atomically increments the window counter and fails with
// ErrRateLimited once the count exceeds limit. The first increment in a
// window sets the window expiry; because INCR is atomic, exactly one caller
// observes count 1, so the increment and the conditional expiry never race.
func (l *Limiter) Allow(ctx context.Context, purpose, identifier string, limit int64, window time.Duration) error {
	key := fmt.Sprintf("ratelimit:%s:%s", purpose, identifier)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.store.Expire(ctx, key, window); err != nil {
			return fmt.Errorf("rate limit expire: %w", err)
		}
	}
	if count > limit {
		return fmt.Errorf("%s %s: %w", purpose, identifier, domain.ErrRateLimited)
	}
	return nil
}
