package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/ratelimit"
	"github.com/mendyturner/xyberiq-app/internal/store"
)

func TestAllowUnderLimit(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.New(store.NewMemoryStore())

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Allow(ctx, "login", "7:user@acme.test", 5, time.Minute))
	}
}

func TestAllowOverLimit(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.New(store.NewMemoryStore())

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Allow(ctx, "login", "7:user@acme.test", 5, time.Minute))
	}
	err := limiter.Allow(ctx, "login", "7:user@acme.test", 5, time.Minute)
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.New(store.NewMemoryStore())

	require.NoError(t, limiter.Allow(ctx, "login", "7:alice@acme.test", 1, time.Minute))
	require.ErrorIs(t, limiter.Allow(ctx, "login", "7:alice@acme.test", 1, time.Minute), domain.ErrRateLimited)

	// Another identifier, and another purpose for the same identifier, both
	// count from zero.
	require.NoError(t, limiter.Allow(ctx, "login", "7:bob@acme.test", 1, time.Minute))
	require.NoError(t, limiter.Allow(ctx, "forgot", "7:alice@acme.test", 1, time.Minute))
}

func TestWindowResets(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.New(store.NewMemoryStore())

	require.NoError(t, limiter.Allow(ctx, "login", "7:user@acme.test", 1, 30*time.Millisecond))
	require.ErrorIs(t, limiter.Allow(ctx, "login", "7:user@acme.test", 1, 30*time.Millisecond), domain.ErrRateLimited)

	time.Sleep(60 * time.Millisecond)

	require.NoError(t, limiter.Allow(ctx, "login", "7:user@acme.test", 1, 30*time.Millisecond))
}

func TestConcurrentCallersAdmitExactlyLimit(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.New(store.NewMemoryStore())

	const callers = 25
	const limit = 10

	var allowed, denied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Allow(ctx, "login", "7:user@acme.test", limit, time.Minute)
			switch {
			case err == nil:
				allowed.Add(1)
			case errors.Is(err, domain.ErrRateLimited):
				denied.Add(1)
			default:
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(limit), allowed.Load())
	require.Equal(t, int64(callers-limit), denied.Load())
}
