package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mendyturner/xyberiq-app/internal/domain"
)

// In-memory repositories used in tests and local development. They enforce
// the same scope discipline as the Postgres implementations: through the
// shared scopedTenantID / stampTenantID chokepoint.
var (
	_ TenantRepository = (*MemoryTenantRepo)(nil)
	_ UserRepository   = (*MemoryUserRepo)(nil)
	_ RoleRepository   = (*MemoryRoleRepo)(nil)
	_ AuditRepository  = (*MemoryAuditRepo)(nil)
)

// MemoryTenantRepo is an in-memory TenantRepository.
type MemoryTenantRepo struct {
	mu      sync.RWMutex
	tenants map[int64]domain.Tenant
}

func NewMemoryTenantRepo() *MemoryTenantRepo {
	return &MemoryTenantRepo{tenants: make(map[int64]domain.Tenant)}
}

func (r *MemoryTenantRepo) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	r.tenants[tenant.ID] = tenant
	return tenant, nil
}

func (r *MemoryTenantRepo) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tenant := range r.tenants {
		if tenant.Slug == slug {
			return tenant, nil
		}
	}
	return domain.Tenant{}, fmt.Errorf("slug %q: %w", slug, domain.ErrTenantNotFound)
}

func (r *MemoryTenantRepo) GetByID(ctx context.Context, id int64) (domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenant, ok := r.tenants[id]
	if !ok {
		return domain.Tenant{}, fmt.Errorf("tenant %d: %w", id, domain.ErrTenantNotFound)
	}
	return tenant, nil
}

func (r *MemoryTenantRepo) GetByBillingCustomerID(ctx context.Context, customerID string) (domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tenant := range r.tenants {
		if tenant.BillingCustomerID == customerID {
			return tenant, nil
		}
	}
	return domain.Tenant{}, fmt.Errorf("billing customer %q: %w", customerID, domain.ErrTenantNotFound)
}

func (r *MemoryTenantRepo) UpdateBillingProfile(ctx context.Context, tenant domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tenants[tenant.ID]
	if !ok {
		return fmt.Errorf("tenant %d: %w", tenant.ID, domain.ErrTenantNotFound)
	}
	stored.BillingCustomerID = tenant.BillingCustomerID
	stored.BillingProvider = tenant.BillingProvider
	stored.SubscriptionStatus = tenant.SubscriptionStatus
	stored.PlanCode = tenant.PlanCode
	stored.TrialEndsAt = tenant.TrialEndsAt
	stored.UpdatedAt = time.Now()
	r.tenants[tenant.ID] = stored
	return nil
}

func (r *MemoryTenantRepo) UpdateSubscriptionStatus(ctx context.Context, tenantID int64, status, planCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tenants[tenantID]
	if !ok {
		return fmt.Errorf("tenant %d: %w", tenantID, domain.ErrTenantNotFound)
	}
	stored.SubscriptionStatus = status
	if planCode != "" {
		stored.PlanCode = planCode
	}
	stored.UpdatedAt = time.Now()
	r.tenants[tenantID] = stored
	return nil
}

// MemoryUserRepo is an in-memory UserRepository.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[int64]domain.User
	roles RoleRepository
}

func NewMemoryUserRepo(roles RoleRepository) *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[int64]domain.User), roles: roles}
}

func (r *MemoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	tenantID, err := stampTenantID(ctx, user.TenantID)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	user.TenantID = tenantID

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}

	r.mu.RLock()
	var found *domain.User
	for _, user := range r.users {
		if user.TenantID == tenantID && user.Email == email {
			u := user
			found = &u
			break
		}
	}
	r.mu.RUnlock()

	if found == nil {
		return domain.User{}, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
	}
	return r.withRoles(ctx, *found)
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	r.mu.RLock()
	user, ok := r.users[id]
	r.mu.RUnlock()

	if !ok || user.TenantID != tenantID {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return r.withRoles(ctx, user)
}

func (r *MemoryUserRepo) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok || user.TenantID != tenantID {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	r.users[userID] = user
	return nil
}

func (r *MemoryUserRepo) withRoles(ctx context.Context, user domain.User) (domain.User, error) {
	if r.roles == nil {
		return user, nil
	}
	roles, err := r.roles.ListForUser(ctx, user.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user roles: %w", err)
	}
	user.Roles = roles
	return user, nil
}

// MemoryRoleRepo is an in-memory RoleRepository.
type MemoryRoleRepo struct {
	mu          sync.RWMutex
	roles       map[int64]domain.Role
	assignments map[int64][]int64 // user id -> role ids
	nextID      int64
}

func NewMemoryRoleRepo() *MemoryRoleRepo {
	return &MemoryRoleRepo{
		roles:       make(map[int64]domain.Role),
		assignments: make(map[int64][]int64),
	}
}

func (r *MemoryRoleRepo) EnsureDefaults(ctx context.Context, tenantID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, name := range domain.DefaultRoleNames {
		if r.findLocked(tenantID, key) != nil {
			continue
		}
		r.nextID++
		r.roles[r.nextID] = domain.Role{ID: r.nextID, TenantID: tenantID, Key: key, Name: name}
	}
	return nil
}

func (r *MemoryRoleRepo) GetByKey(ctx context.Context, key domain.RoleKey) (domain.Role, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return domain.Role{}, fmt.Errorf("get role: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if role := r.findLocked(tenantID, key); role != nil {
		return *role, nil
	}
	return domain.Role{}, fmt.Errorf("role %s: %w", key, domain.ErrNotFound)
}

func (r *MemoryRoleRepo) Assign(ctx context.Context, userID, roleID int64) error {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return fmt.Errorf("role %d: %w", roleID, domain.ErrNotFound)
	}
	for _, assigned := range r.assignments[userID] {
		if assigned == roleID {
			return nil
		}
	}
	r.assignments[userID] = append(r.assignments[userID], roleID)
	return nil
}

func (r *MemoryRoleRepo) ListForUser(ctx context.Context, userID int64) ([]domain.Role, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var roles []domain.Role
	for _, roleID := range r.assignments[userID] {
		role, ok := r.roles[roleID]
		if ok && role.TenantID == tenantID {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (r *MemoryRoleRepo) findLocked(tenantID int64, key domain.RoleKey) *domain.Role {
	for _, role := range r.roles {
		if role.TenantID == tenantID && role.Key == key {
			r := role
			return &r
		}
	}
	return nil
}

// MemoryAuditRepo is an in-memory AuditRepository.
type MemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{}
}

func (r *MemoryAuditRepo) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	tenantID, err := stampTenantID(ctx, entry.TenantID)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("append audit entry: %w", err)
	}
	entry.TenantID = tenantID
	entry.CreatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return entry, nil
}

// Entries returns a copy of the recorded audit trail.
func (r *MemoryAuditRepo) Entries() []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
