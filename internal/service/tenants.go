package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/billing"
	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/provisioning"
	"github.com/mendyturner/xyberiq-app/internal/repository"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRuns     = regexp.MustCompile(`-+`)
)

// NormalizeSlug lowercases the input and collapses anything that is not
// [a-z0-9-] into single dashes. An empty result means the input was unusable.
func NormalizeSlug(raw string) string {
	slug := strings.ToLower(strings.TrimSpace(raw))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = slugDashRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// TenantService encapsulates tenant registration and billing lifecycle.
type TenantService struct {
	tenants      repository.TenantRepository
	roles        repository.RoleRepository
	billing      billing.Provider
	provisioning provisioning.Publisher
	node         *snowflake.Node
	trialDays    int
	logger       *zap.Logger
}

// NewTenantService wires dependencies.
func NewTenantService(
	tenants repository.TenantRepository,
	roles repository.RoleRepository,
	billingProvider billing.Provider,
	publisher provisioning.Publisher,
	node *snowflake.Node,
	trialDays int,
	logger *zap.Logger,
) *TenantService {
	if logger == nil {
		logger = zap.L()
	}
	return &TenantService{
		tenants:      tenants,
		roles:        roles,
		billing:      billingProvider,
		provisioning: publisher,
		node:         node,
		trialDays:    trialDays,
		logger:       logger,
	}
}

// RegisterTenantInput carries the fields needed to provision a tenant.
type RegisterTenantInput struct {
	Name         string
	Slug         string
	ContactEmail string
	PlanCode     string
	Metadata     map[string]string
}

// Register provisions a new tenant: normalized unique slug, default roles,
// a billing customer with trial window, and a provisioning event. Runs
// without tenant scope; the tenant being created is the partition root.
func (s *TenantService) Register(ctx context.Context, input RegisterTenantInput) (domain.Tenant, error) {
	slug := NormalizeSlug(input.Slug)
	if slug == "" {
		return domain.Tenant{}, fmt.Errorf("slug %q: %w", input.Slug, domain.ErrInvalidSlug)
	}

	if _, err := s.tenants.GetBySlug(ctx, slug); err == nil {
		return domain.Tenant{}, fmt.Errorf("slug %q: %w", slug, domain.ErrTenantExists)
	} else if !errors.Is(err, domain.ErrTenantNotFound) {
		return domain.Tenant{}, fmt.Errorf("check slug: %w", err)
	}

	tenant := domain.Tenant{
		ID:           s.node.Generate().Int64(),
		Name:         input.Name,
		Slug:         slug,
		ContactEmail: input.ContactEmail,
		Status:       "active",
	}
	created, err := s.tenants.Create(ctx, tenant)
	if err != nil {
		return domain.Tenant{}, err
	}

	if err := s.roles.EnsureDefaults(ctx, created.ID); err != nil {
		return domain.Tenant{}, fmt.Errorf("provision default roles: %w", err)
	}

	customer, err := s.billing.CreateCustomer(ctx, input.ContactEmail, input.Name, s.trialDays)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("create billing customer: %w", err)
	}

	created.BillingCustomerID = customer.CustomerID
	created.BillingProvider = customer.Provider
	created.SubscriptionStatus = "trialing"
	created.PlanCode = input.PlanCode
	created.TrialEndsAt = customer.TrialEndsAt
	if err := s.tenants.UpdateBillingProfile(ctx, created); err != nil {
		return domain.Tenant{}, err
	}

	err = s.provisioning.Publish(ctx, provisioning.Event{
		TenantID:    created.ID,
		CustomerID:  customer.CustomerID,
		PlanCode:    input.PlanCode,
		TrialEndsAt: customer.TrialEndsAt,
		Metadata:    input.Metadata,
	})
	if err != nil {
		// Provisioning fan-out is best effort; the tenant itself is live.
		s.logger.Warn("provisioning publish failed", zap.Int64("tenant_id", created.ID), zap.Error(err))
	}

	s.logger.Info("tenant registered",
		zap.Int64("tenant_id", created.ID),
		zap.String("slug", created.Slug),
	)
	return created, nil
}

// GetBySlug resolves a tenant by its public slug (cross-tenant by nature).
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	return s.tenants.GetBySlug(ctx, NormalizeSlug(slug))
}

// GetByID loads a tenant by id (cross-tenant by nature).
func (s *TenantService) GetByID(ctx context.Context, id int64) (domain.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

// UpdateSubscriptionStatus records a billing status change for the tenant.
func (s *TenantService) UpdateSubscriptionStatus(ctx context.Context, tenantID int64, status, planCode string) error {
	return s.tenants.UpdateSubscriptionStatus(ctx, tenantID, status, planCode)
}
