package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/billing"
	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/provisioning"
	"github.com/mendyturner/xyberiq-app/internal/repository"
	"github.com/mendyturner/xyberiq-app/internal/service"
)

func TestNormalizeSlug(t *testing.T) {
	cases := map[string]string{
		"Acme Corp":       "acme-corp",
		"  acme  ":        "acme",
		"ACME!!Inc":       "acme-inc",
		"--acme--":        "acme",
		"a__b":            "a-b",
		"already-good-1":  "already-good-1",
		"!!!":             "",
		"":                "",
		"Ümläut Größe":    "ml-ut-gr-e",
		"trailing-dash-":  "trailing-dash",
	}
	for input, want := range cases {
		require.Equal(t, want, service.NormalizeSlug(input), "input %q", input)
	}
}

type recordingPublisher struct {
	events []provisioning.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event provisioning.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTenantFixture(t *testing.T) (*service.TenantService, *repository.MemoryRoleRepo, *recordingPublisher) {
	t.Helper()
	tenants := repository.NewMemoryTenantRepo()
	roles := repository.NewMemoryRoleRepo()
	publisher := &recordingPublisher{}
	svc := service.NewTenantService(tenants, roles, billing.NewStubProvider(zap.NewNop()), publisher, newTestNode(t), 7, zap.NewNop())
	return svc, roles, publisher
}

func TestRegisterTenant(t *testing.T) {
	svc, roles, publisher := newTenantFixture(t)
	ctx := context.Background()

	tenant, err := svc.Register(ctx, service.RegisterTenantInput{
		Name:         "Acme Corp",
		Slug:         "Acme Corp",
		ContactEmail: "owner@acme.test",
		PlanCode:     "starter",
	})
	require.NoError(t, err)
	require.Equal(t, "acme-corp", tenant.Slug)
	require.Equal(t, "trialing", tenant.SubscriptionStatus)
	require.Equal(t, "starter", tenant.PlanCode)
	require.NotEmpty(t, tenant.BillingCustomerID)
	require.NotNil(t, tenant.TrialEndsAt)

	// Default roles exist for the new tenant.
	for key := range domain.DefaultRoleNames {
		_, err := roles.GetByKey(scopeCtx(tenant.ID), key)
		require.NoError(t, err, "role %s", key)
	}

	// One provisioning event went out.
	require.Len(t, publisher.events, 1)
	require.Equal(t, tenant.ID, publisher.events[0].TenantID)
	require.Equal(t, "starter", publisher.events[0].PlanCode)
}

func TestRegisterDuplicateSlug(t *testing.T) {
	svc, _, _ := newTenantFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterTenantInput{Name: "Acme", Slug: "acme", ContactEmail: "a@acme.test"})
	require.NoError(t, err)

	// The duplicate check runs on the normalized slug.
	_, err = svc.Register(ctx, service.RegisterTenantInput{Name: "Acme 2", Slug: "ACME!", ContactEmail: "b@acme.test"})
	require.ErrorIs(t, err, domain.ErrTenantExists)
}

func TestRegisterUnusableSlug(t *testing.T) {
	svc, _, _ := newTenantFixture(t)

	_, err := svc.Register(context.Background(), service.RegisterTenantInput{Name: "Bad", Slug: "!!!"})
	require.ErrorIs(t, err, domain.ErrInvalidSlug)
}

func TestGetBySlugNormalizesInput(t *testing.T) {
	svc, _, _ := newTenantFixture(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, service.RegisterTenantInput{Name: "Acme", Slug: "acme", ContactEmail: "a@acme.test"})
	require.NoError(t, err)

	got, err := svc.GetBySlug(ctx, "  ACME  ")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestUpdateSubscriptionStatus(t *testing.T) {
	svc, _, _ := newTenantFixture(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, service.RegisterTenantInput{Name: "Acme", Slug: "acme", ContactEmail: "a@acme.test", PlanCode: "starter"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateSubscriptionStatus(ctx, created.ID, "active", "growth"))

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "active", got.SubscriptionStatus)
	require.Equal(t, "growth", got.PlanCode)
}
