package tenantscope_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/tenantscope"
)

func TestBindAndFrom(t *testing.T) {
	ctx := tenantscope.Bind(context.Background(), tenantscope.Scope{TenantID: 42, TenantSlug: "acme"})

	scope, ok := tenantscope.From(ctx)
	require.True(t, ok)
	require.Equal(t, int64(42), scope.TenantID)
	require.Equal(t, "acme", scope.TenantSlug)
}

func TestFromUnboundContext(t *testing.T) {
	_, ok := tenantscope.From(context.Background())
	require.False(t, ok)
}

func TestRequireUnbound(t *testing.T) {
	_, err := tenantscope.Require(context.Background())
	require.ErrorIs(t, err, domain.ErrNoScope)
}

func TestRequireZeroTenant(t *testing.T) {
	ctx := tenantscope.Bind(context.Background(), tenantscope.Scope{})
	_, err := tenantscope.Require(ctx)
	require.ErrorIs(t, err, domain.ErrNoScope)
}

func TestNestedBindRestoresOuterScope(t *testing.T) {
	outer := tenantscope.Bind(context.Background(), tenantscope.Scope{TenantID: 1, TenantSlug: "one"})
	inner := tenantscope.Bind(outer, tenantscope.Scope{TenantID: 2, TenantSlug: "two"})

	scope, err := tenantscope.Require(inner)
	require.NoError(t, err)
	require.Equal(t, int64(2), scope.TenantID)

	// The outer context never saw the inner binding.
	scope, err = tenantscope.Require(outer)
	require.NoError(t, err)
	require.Equal(t, int64(1), scope.TenantID)
}

func TestConcurrentBindingsAreIsolated(t *testing.T) {
	var wg sync.WaitGroup
	for id := int64(1); id <= 50; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			ctx := tenantscope.Bind(context.Background(), tenantscope.Scope{TenantID: id})
			scope, err := tenantscope.Require(ctx)
			if err != nil {
				t.Errorf("tenant %d: %v", id, err)
				return
			}
			if scope.TenantID != id {
				t.Errorf("tenant %d observed scope %d", id, scope.TenantID)
			}
		}(id)
	}
	wg.Wait()
}

func TestRequireWrapsSentinel(t *testing.T) {
	_, err := tenantscope.Require(context.Background())
	require.True(t, errors.Is(err, domain.ErrNoScope))
	require.Contains(t, err.Error(), "tenant scope required")
}
