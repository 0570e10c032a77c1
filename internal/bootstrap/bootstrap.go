package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/config"
	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/service"
	"github.com/mendyturner/xyberiq-app/internal/tenantscope"
)

// EnsureTenant provisions a default tenant and admin user for dev/e2e
// environments. It does nothing when the bootstrap config is absent.
func EnsureTenant(lc fx.Lifecycle, cfg config.Config, tenants *service.TenantService, users *service.UserService, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureTenant(ctx, cfg, tenants, users, logger)
		},
	})
}

func ensureTenant(ctx context.Context, cfg config.Config, tenants *service.TenantService, users *service.UserService, logger *zap.Logger) error {
	slug := strings.TrimSpace(cfg.BootstrapTenantSlug)
	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	if slug == "" || email == "" || cfg.BootstrapAdminPass == "" {
		return nil
	}

	tenant, err := tenants.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		tenant, err = tenants.Register(ctx, service.RegisterTenantInput{
			Name:         cfg.BootstrapTenantName,
			Slug:         slug,
			ContactEmail: email,
		})
		if err != nil {
			return fmt.Errorf("bootstrap register tenant: %w", err)
		}
	case err != nil:
		return fmt.Errorf("bootstrap tenant lookup: %w", err)
	}

	scoped := tenantscope.Bind(ctx, tenantscope.Scope{TenantID: tenant.ID, TenantSlug: tenant.Slug})

	if _, err := users.GetByEmail(scoped, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("bootstrap user lookup: %w", err)
	}

	admin, err := users.Create(scoped, service.CreateUserInput{
		Email:    email,
		Password: cfg.BootstrapAdminPass,
		Roles:    []domain.RoleKey{domain.RoleAdmin, domain.RoleEmployee},
	})
	if err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", admin.Email),
			zap.Int64("tenant_id", tenant.ID),
			zap.Int64("user_id", admin.ID),
		)
	}
	return nil
}
