// Package tenant determines the acting tenant from request evidence before
// any data access occurs.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/repository"
	"github.com/mendyturner/xyberiq-app/internal/token"
)

// Resolver resolves tenants from an explicit selector or a bearer token's
// tenant claim.
type Resolver struct {
	tenants repository.TenantRepository
	codec   *token.Codec
	logger  *zap.Logger
}

// NewResolver creates a tenant resolver.
func NewResolver(tenants repository.TenantRepository, codec *token.Codec, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.L()
	}
	return &Resolver{tenants: tenants, codec: codec, logger: logger}
}

// Resolve determines the acting tenant. Selector wins over the token claim,
// but the two must agree when both are present. Tenant lookups here are the
// inherently cross-tenant resolution path.
func (r *Resolver) Resolve(ctx context.Context, selector, bearer string) (domain.Tenant, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	bearer = strings.TrimSpace(bearer)

	switch {
	case selector != "":
		tenant, err := r.tenants.GetBySlug(ctx, selector)
		if err != nil {
			if errors.Is(err, domain.ErrTenantNotFound) {
				r.logger.Warn("tenant selector did not resolve", zap.String("selector", selector))
			}
			return domain.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
		}
		if bearer != "" {
			claims, err := r.codec.Decode(bearer)
			if err != nil {
				return domain.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
			}
			if claims.TenantID != 0 && claims.TenantID != tenant.ID {
				r.logger.Warn("bearer tenant claim disagrees with selector",
					zap.String("selector", selector),
					zap.Int64("claimed_tenant_id", claims.TenantID),
					zap.Int64("resolved_tenant_id", tenant.ID),
				)
				return domain.Tenant{}, fmt.Errorf("claim %d vs tenant %d: %w", claims.TenantID, tenant.ID, domain.ErrTenantMismatch)
			}
		}
		return tenant, nil

	case bearer != "":
		claims, err := r.codec.Decode(bearer)
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
		}
		if claims.TenantID == 0 {
			return domain.Tenant{}, domain.ErrMissingTenantClaim
		}
		tenant, err := r.tenants.GetByID(ctx, claims.TenantID)
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
		}
		return tenant, nil

	default:
		return domain.Tenant{}, domain.ErrMissingTenantIdentifier
	}
}
