// Package repository is the single chokepoint through which all reads and
// writes of tenant-scoped entities pass. Scoped methods refuse to run
// without a bound tenant scope and constrain every statement to it; the
// handful of legitimately cross-tenant lookups live on separately named
// methods so an isolation bypass is always visible at the call site.
package repository

import (
	"context"

	"github.com/mendyturner/xyberiq-app/internal/domain"
)

// TenantRepository manages tenant records. Tenants themselves are the
// partition roots, so resolution lookups here run without tenant scope:
// resolving a tenant by its public slug, loading it by id from a token
// claim, and finding it by billing customer id are the cross-tenant
// operations enumerated for the platform.
type TenantRepository interface {
	Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (domain.Tenant, error)
	GetByID(ctx context.Context, id int64) (domain.Tenant, error)
	GetByBillingCustomerID(ctx context.Context, customerID string) (domain.Tenant, error)
	UpdateBillingProfile(ctx context.Context, tenant domain.Tenant) error
	UpdateSubscriptionStatus(ctx context.Context, tenantID int64, status, planCode string) error
}

// UserRepository manages tenant-scoped users. Every method requires a bound
// tenant scope; reads are constrained to it and creates are stamped with it.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
}

// RoleRepository manages tenant roles and assignments. EnsureDefaults is the
// one unscoped operation: it provisions roles for a brand-new tenant before
// any user of that tenant exists to carry a scope.
type RoleRepository interface {
	EnsureDefaults(ctx context.Context, tenantID int64) error
	GetByKey(ctx context.Context, key domain.RoleKey) (domain.Role, error)
	Assign(ctx context.Context, userID, roleID int64) error
	ListForUser(ctx context.Context, userID int64) ([]domain.Role, error)
}

// AuditRepository appends tenant-scoped audit trail entries.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
}
