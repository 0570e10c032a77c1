package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mendyturner/xyberiq-app/internal/domain"
)

// Compile-time interface assertions.
var (
	_ TenantRepository = (*PostgresTenantRepo)(nil)
	_ UserRepository   = (*PostgresUserRepo)(nil)
	_ RoleRepository   = (*PostgresRoleRepo)(nil)
	_ AuditRepository  = (*PostgresAuditRepo)(nil)
)

// PostgresTenantRepo implements TenantRepository on pgx.
type PostgresTenantRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTenantRepo(pool *pgxpool.Pool) *PostgresTenantRepo {
	return &PostgresTenantRepo{db: pool}
}

const tenantColumns = `id, name, slug, contact_email, billing_customer_id, billing_provider,
subscription_status, plan_code, trial_ends_at, status, created_at, updated_at`

const insertTenantSQL = `INSERT INTO tenants (id, name, slug, contact_email, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + tenantColumns

func (r *PostgresTenantRepo) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	row := r.db.QueryRow(ctx, insertTenantSQL, tenant.ID, tenant.Name, tenant.Slug, tenant.ContactEmail, tenant.Status)
	created, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return created, nil
}

func (r *PostgresTenantRepo) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, fmt.Errorf("slug %q: %w", slug, domain.ErrTenantNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("get tenant by slug: %w", err)
	}
	return tenant, nil
}

func (r *PostgresTenantRepo) GetByID(ctx context.Context, id int64) (domain.Tenant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, fmt.Errorf("tenant %d: %w", id, domain.ErrTenantNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return tenant, nil
}

func (r *PostgresTenantRepo) GetByBillingCustomerID(ctx context.Context, customerID string) (domain.Tenant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE billing_customer_id = $1`, customerID)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, fmt.Errorf("billing customer %q: %w", customerID, domain.ErrTenantNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("get tenant by billing customer: %w", err)
	}
	return tenant, nil
}

const updateBillingProfileSQL = `UPDATE tenants
SET billing_customer_id = $2, billing_provider = $3, subscription_status = $4,
    plan_code = $5, trial_ends_at = $6, updated_at = now()
WHERE id = $1`

func (r *PostgresTenantRepo) UpdateBillingProfile(ctx context.Context, tenant domain.Tenant) error {
	_, err := r.db.Exec(ctx, updateBillingProfileSQL,
		tenant.ID,
		tenant.BillingCustomerID,
		tenant.BillingProvider,
		tenant.SubscriptionStatus,
		tenant.PlanCode,
		tenant.TrialEndsAt,
	)
	if err != nil {
		return fmt.Errorf("update billing profile: %w", err)
	}
	return nil
}

func (r *PostgresTenantRepo) UpdateSubscriptionStatus(ctx context.Context, tenantID int64, status, planCode string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tenants SET subscription_status = $2, plan_code = COALESCE(NULLIF($3, ''), plan_code), updated_at = now() WHERE id = $1`,
		tenantID, status, planCode,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Slug,
		&t.ContactEmail,
		&t.BillingCustomerID,
		&t.BillingProvider,
		&t.SubscriptionStatus,
		&t.PlanCode,
		&t.TrialEndsAt,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

// PostgresUserRepo implements UserRepository on pgx. Every statement is
// constrained to the bound tenant scope.
type PostgresUserRepo struct {
	db    *pgxpool.Pool
	roles RoleRepository
}

func NewPostgresUserRepo(pool *pgxpool.Pool, roles RoleRepository) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool, roles: roles}
}

const userColumns = `id, tenant_id, email, password_hash, first_name, last_name,
department, title, status, created_at, updated_at`

const insertUserSQL = `INSERT INTO users (id, tenant_id, email, password_hash, first_name, last_name, department, title, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	tenantID, err := stampTenantID(ctx, user.TenantID)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		tenantID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Department,
		user.Title,
		user.Status,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}

	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`, tenantID, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return r.withRoles(ctx, user)
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return r.withRoles(ctx, user)
}

func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2`,
		tenantID, userID, hash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) withRoles(ctx context.Context, user domain.User) (domain.User, error) {
	roles, err := r.roles.ListForUser(ctx, user.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user roles: %w", err)
	}
	user.Roles = roles
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Department,
		&u.Title,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// PostgresRoleRepo implements RoleRepository on pgx.
type PostgresRoleRepo struct {
	db   *pgxpool.Pool
	next func() int64
}

// NewPostgresRoleRepo constructs a role repository; next mints row ids.
func NewPostgresRoleRepo(pool *pgxpool.Pool, next func() int64) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: pool, next: next}
}

// EnsureDefaults provisions the default role set for a new tenant. The
// tenant has no users yet, so this runs against the given tenant id without
// a bound scope.
func (r *PostgresRoleRepo) EnsureDefaults(ctx context.Context, tenantID int64) error {
	for key, name := range domain.DefaultRoleNames {
		_, err := r.db.Exec(ctx,
			`INSERT INTO roles (id, tenant_id, key, name) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (tenant_id, key) DO NOTHING`,
			r.next(), tenantID, string(key), name,
		)
		if err != nil {
			return fmt.Errorf("ensure role %s: %w", key, err)
		}
	}
	return nil
}

func (r *PostgresRoleRepo) GetByKey(ctx context.Context, key domain.RoleKey) (domain.Role, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return domain.Role{}, fmt.Errorf("get role: %w", err)
	}

	var role domain.Role
	err = r.db.QueryRow(ctx,
		`SELECT id, tenant_id, key, name FROM roles WHERE tenant_id = $1 AND key = $2`,
		tenantID, string(key),
	).Scan(&role.ID, &role.TenantID, &role.Key, &role.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Role{}, fmt.Errorf("role %s: %w", key, domain.ErrNotFound)
		}
		return domain.Role{}, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

func (r *PostgresRoleRepo) Assign(ctx context.Context, userID, roleID int64) error {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO user_roles (id, tenant_id, user_id, role_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, user_id, role_id) DO NOTHING`,
		r.next(), tenantID, userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (r *PostgresRoleRepo) ListForUser(ctx context.Context, userID int64) ([]domain.Role, error) {
	tenantID, err := scopedTenantID(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.tenant_id, r.key, r.name
		 FROM roles r JOIN user_roles ur ON ur.role_id = r.id AND ur.tenant_id = r.tenant_id
		 WHERE r.tenant_id = $1 AND ur.user_id = $2`,
		tenantID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Key, &role.Name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// PostgresAuditRepo implements AuditRepository on pgx.
type PostgresAuditRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAuditRepo(pool *pgxpool.Pool) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: pool}
}

const insertAuditSQL = `INSERT INTO audit_log (id, tenant_id, actor_user_id, action, target_type, target_id, meta, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`

func (r *PostgresAuditRepo) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	tenantID, err := stampTenantID(ctx, entry.TenantID)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("append audit entry: %w", err)
	}
	entry.TenantID = tenantID

	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("encode audit meta: %w", err)
	}

	err = r.db.QueryRow(ctx, insertAuditSQL,
		entry.ID,
		entry.TenantID,
		entry.ActorUserID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		meta,
		entry.IP,
		entry.UserAgent,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("append audit entry: %w", err)
	}
	return entry, nil
}
