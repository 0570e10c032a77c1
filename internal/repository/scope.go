package repository

import (
	"context"
	"fmt"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/tenantscope"
)

// scopedTenantID returns the tenant id every statement in the current
// request must be constrained to, or ErrNoScope.
func scopedTenantID(ctx context.Context) (int64, error) {
	scope, err := tenantscope.Require(ctx)
	if err != nil {
		return 0, err
	}
	return scope.TenantID, nil
}

// stampTenantID resolves the tenant id for a new tenant-scoped row. An unset
// field is stamped from the bound scope; writing without a scope, or with a
// tenant id that disagrees with the scope, fails loudly instead of
// producing an owner-less or cross-tenant row.
func stampTenantID(ctx context.Context, tenantID int64) (int64, error) {
	scoped, err := scopedTenantID(ctx)
	if err != nil {
		return 0, err
	}
	if tenantID == 0 {
		return scoped, nil
	}
	if tenantID != scoped {
		return 0, fmt.Errorf("insert tenant %d under scope %d: %w", tenantID, scoped, domain.ErrTenantMismatch)
	}
	return tenantID, nil
}
