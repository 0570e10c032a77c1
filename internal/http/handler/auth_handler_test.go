package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/billing"
	"github.com/mendyturner/xyberiq-app/internal/config"
	httptransport "github.com/mendyturner/xyberiq-app/internal/http"
	"github.com/mendyturner/xyberiq-app/internal/http/handler"
	"github.com/mendyturner/xyberiq-app/internal/http/middleware"
	"github.com/mendyturner/xyberiq-app/internal/provisioning"
	"github.com/mendyturner/xyberiq-app/internal/ratelimit"
	"github.com/mendyturner/xyberiq-app/internal/repository"
	"github.com/mendyturner/xyberiq-app/internal/service"
	"github.com/mendyturner/xyberiq-app/internal/session"
	"github.com/mendyturner/xyberiq-app/internal/store"
	"github.com/mendyturner/xyberiq-app/internal/tenant"
	"github.com/mendyturner/xyberiq-app/internal/token"
)

type fixture struct {
	router *gin.Engine
	audit  *repository.MemoryAuditRepo
}

func newFixture(t *testing.T, limits handler.Limits) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	tenantRepo := repository.NewMemoryTenantRepo()
	roleRepo := repository.NewMemoryRoleRepo()
	userRepo := repository.NewMemoryUserRepo(roleRepo)
	auditRepo := repository.NewMemoryAuditRepo()
	st := store.NewMemoryStore()

	codec := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "xyberiq-app", "xyberiq-clients", 15*time.Minute, time.Hour)
	resolver := tenant.NewResolver(tenantRepo, codec, logger)

	tenantSvc := service.NewTenantService(tenantRepo, roleRepo, billing.NewStubProvider(logger), provisioning.NewLogPublisher(logger), node, 7, logger)
	userSvc := service.NewUserService(userRepo, roleRepo, node, logger)
	auditSvc := service.NewAuditService(auditRepo, node, logger)
	sessionSvc := session.NewService(codec, st, time.Minute, logger)
	limiter := ratelimit.New(st)

	authHandler := handler.NewAuthHandler(tenantSvc, userSvc, sessionSvc, auditSvc, limiter, limits, logger)
	auth := &middleware.Auth{Codec: codec, Users: userSvc}

	cfg := config.Config{ServiceName: "xyberiq-app-test"}
	router := httptransport.NewRouter(cfg, authHandler, auth, resolver, nil, logger)

	return &fixture{router: router, audit: auditRepo}
}

func defaultLimits() handler.Limits {
	return handler.Limits{LoginPerMinute: 100, RegisterPerHour: 100, ForgotPerQuarter: 100}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) registerTenant(t *testing.T, slug, adminEmail, adminPassword string) session.TokenPair {
	t.Helper()
	w := f.do(t, http.MethodPost, "/auth/register-tenant", map[string]any{
		"tenant_name":   slug,
		"tenant_slug":   slug,
		"contact_email": adminEmail,
		"plan_code":     "starter",
		"admin": map[string]any{
			"email":      adminEmail,
			"password":   adminPassword,
			"first_name": "Ada",
			"last_name":  "Admin",
		},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var pair session.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func TestRegisterTenantAndLogin(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "admin@acme.test",
		"password": "initial-pass",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pair session.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	require.Equal(t, "bearer", pair.TokenType)
}

func TestRegisterDuplicateSlugConflicts(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/register-tenant", map[string]any{
		"tenant_slug": "acme",
		"admin":       map[string]any{"email": "other@acme.test", "password": "whatever-pass"},
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "admin@acme.test",
		"password": "wrong-pass",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginIsTenantIsolated(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")
	f.registerTenant(t, "globex", "admin@globex.test", "other-pass")

	// Valid acme credentials do not work under globex.
	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "admin@acme.test",
		"password": "initial-pass",
	}, map[string]string{"X-Tenant": "globex"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginWithoutTenantHeader(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "admin@acme.test",
		"password": "initial-pass",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginUnknownTenant(t *testing.T) {
	f := newFixture(t, defaultLimits())

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "admin@acme.test",
		"password": "initial-pass",
	}, map[string]string{"X-Tenant": "ghost"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMe(t *testing.T) {
	f := newFixture(t, defaultLimits())
	pair := f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodGet, "/auth/me", nil, map[string]string{
		"X-Tenant":      "acme",
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var profile struct {
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	require.Equal(t, "admin@acme.test", profile.Email)
	require.ElementsMatch(t, []string{"admin", "employee"}, profile.Roles)
}

func TestMeRejectsForeignTenantHeader(t *testing.T) {
	f := newFixture(t, defaultLimits())
	pair := f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")
	f.registerTenant(t, "globex", "admin@globex.test", "other-pass")

	// An acme access token presented under the globex selector fails at
	// resolution.
	w := f.do(t, http.MethodGet, "/auth/me", nil, map[string]string{
		"X-Tenant":      "globex",
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMeRejectsRefreshToken(t *testing.T) {
	f := newFixture(t, defaultLimits())
	pair := f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodGet, "/auth/me", nil, map[string]string{
		"X-Tenant":      "acme",
		"Authorization": "Bearer " + pair.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t, defaultLimits())
	pair := f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/refresh", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rotated session.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The consumed token is single-use.
	w = f.do(t, http.MethodPost, "/auth/refresh", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The rotated one still works.
	w = f.do(t, http.MethodPost, "/auth/refresh", map[string]any{
		"refresh_token": rotated.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	f := newFixture(t, defaultLimits())
	pair := f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/logout", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/auth/refresh", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Logging out an already-dead token is still a 204.
	w = f.do(t, http.MethodPost, "/auth/logout", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "old-pass")

	w := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
		"email": "admin@acme.test",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusAccepted, w.Code)

	ticket := f.lastResetTicket(t)

	w = f.do(t, http.MethodPost, "/auth/reset-password", map[string]any{
		"ticket":       ticket,
		"new_password": "new-pass",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The old password is dead, the new one works.
	w = f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "admin@acme.test", "password": "old-pass",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "admin@acme.test", "password": "new-pass",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusOK, w.Code)

	// The ticket is single-use.
	w = f.do(t, http.MethodPost, "/auth/reset-password", map[string]any{
		"ticket":       ticket,
		"new_password": "another-pass",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForgotPasswordDoesNotEnumerate(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
		"email": "nobody@acme.test",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	limits := defaultLimits()
	limits.LoginPerMinute = 3
	f := newFixture(t, limits)
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	for i := 0; i < 3; i++ {
		w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
			"email": "admin@acme.test", "password": "wrong-pass",
		}, map[string]string{"X-Tenant": "acme"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "admin@acme.test", "password": "initial-pass",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// The limit is per identity; another user in the tenant still gets in.
	w = f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "someone-else@acme.test", "password": "whatever",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditTrailRecordsFlow(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.registerTenant(t, "acme", "admin@acme.test", "initial-pass")

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "admin@acme.test", "password": "initial-pass",
	}, map[string]string{"X-Tenant": "acme"})
	require.Equal(t, http.StatusOK, w.Code)

	var actions []string
	for _, entry := range f.audit.Entries() {
		actions = append(actions, entry.Action)
	}
	require.Contains(t, actions, "tenant.register")
	require.Contains(t, actions, "auth.login")
}

func (f *fixture) lastResetTicket(t *testing.T) string {
	t.Helper()
	entries := f.audit.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Action == "auth.forgot_password" {
			ticket, ok := entries[i].Meta["reset_ticket"].(string)
			require.True(t, ok)
			return ticket
		}
	}
	t.Fatal("no reset ticket recorded")
	return ""
}
