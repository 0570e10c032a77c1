// Package tenantscope carries the resolved tenant identity through the
// lifetime of a single request or task.
//
// The scope rides on the context.Context chain, so concurrent requests can
// never observe each other's binding, and a nested Bind shadows the outer
// scope only for code holding the derived context. The outer scope is
// restored the moment the caller resumes with its own context, on every
// exit path including panics and early returns.
package tenantscope

import (
	"context"
	"fmt"

	"github.com/mendyturner/xyberiq-app/internal/domain"
)

// Scope identifies the tenant bound to the executing request.
type Scope struct {
	TenantID   int64
	TenantSlug string
}

type scopeKey struct{}

// Bind derives a context carrying the given tenant scope. Callers that need
// cross-tenant nesting simply Bind again on the derived context and keep the
// outer context around; there is nothing to release.
func Bind(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// From returns the scope bound to ctx, reporting whether one is present.
func From(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(Scope)
	return scope, ok
}

// Require returns the bound scope or ErrNoScope. Data-access code that
// touches tenant-scoped entities must call this before issuing a statement.
func Require(ctx context.Context) (Scope, error) {
	scope, ok := From(ctx)
	if !ok || scope.TenantID == 0 {
		return Scope{}, fmt.Errorf("tenant scope required: %w", domain.ErrNoScope)
	}
	return scope, nil
}
