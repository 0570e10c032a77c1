package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/http/middleware"
	"github.com/mendyturner/xyberiq-app/internal/ratelimit"
	"github.com/mendyturner/xyberiq-app/internal/service"
	"github.com/mendyturner/xyberiq-app/internal/session"
	"github.com/mendyturner/xyberiq-app/internal/tenantscope"
)

// Limits configures the store-backed rate limits for sensitive endpoints.
type Limits struct {
	LoginPerMinute   int64
	RegisterPerHour  int64
	ForgotPerQuarter int64
}

// AuthHandler exposes the authentication and tenant lifecycle endpoints.
type AuthHandler struct {
	tenants  *service.TenantService
	users    *service.UserService
	sessions *session.Service
	audit    *service.AuditService
	limiter  *ratelimit.Limiter
	limits   Limits
	logger   *zap.Logger
}

// NewAuthHandler wires dependencies.
func NewAuthHandler(
	tenants *service.TenantService,
	users *service.UserService,
	sessions *session.Service,
	audit *service.AuditService,
	limiter *ratelimit.Limiter,
	limits Limits,
	logger *zap.Logger,
) *AuthHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &AuthHandler{
		tenants:  tenants,
		users:    users,
		sessions: sessions,
		audit:    audit,
		limiter:  limiter,
		limits:   limits,
		logger:   logger,
	}
}

type registerTenantRequest struct {
	TenantName   string `json:"tenant_name"`
	TenantSlug   string `json:"tenant_slug"`
	ContactEmail string `json:"contact_email"`
	PlanCode     string `json:"plan_code"`
	Admin        struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"admin"`
}

// RegisterTenant provisions a tenant with its admin user and returns the
// admin's first token pair.
func (h *AuthHandler) RegisterTenant(c *gin.Context) {
	if !h.allow(c, "register-tenant", c.ClientIP(), h.limits.RegisterPerHour, time.Hour) {
		return
	}

	var req registerTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid payload.")
		return
	}
	if strings.TrimSpace(req.TenantSlug) == "" || strings.TrimSpace(req.Admin.Email) == "" || req.Admin.Password == "" {
		badRequest(c, "Tenant slug and admin credentials are required.")
		return
	}

	ctx := c.Request.Context()
	tenant, err := h.tenants.Register(ctx, service.RegisterTenantInput{
		Name:         req.TenantName,
		Slug:         req.TenantSlug,
		ContactEmail: req.ContactEmail,
		PlanCode:     req.PlanCode,
		Metadata:     map[string]string{"source_ip": c.ClientIP()},
	})
	if err != nil {
		if errors.Is(err, domain.ErrTenantExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "error_description": "Tenant slug already exists."})
			return
		}
		if errors.Is(err, domain.ErrInvalidSlug) {
			badRequest(c, "Tenant slug is unusable.")
			return
		}
		h.serverError(c, "register tenant", err)
		return
	}

	// The tenant now exists; everything from here on runs under its scope.
	scoped := tenantscope.Bind(ctx, tenantscope.Scope{TenantID: tenant.ID, TenantSlug: tenant.Slug})

	admin, err := h.users.Create(scoped, service.CreateUserInput{
		Email:     req.Admin.Email,
		Password:  req.Admin.Password,
		FirstName: req.Admin.FirstName,
		LastName:  req.Admin.LastName,
		Roles:     []domain.RoleKey{domain.RoleAdmin, domain.RoleEmployee},
	})
	if err != nil {
		h.serverError(c, "create admin user", err)
		return
	}

	pair, err := h.sessions.IssuePair(scoped, admin, tenant)
	if err != nil {
		h.serverError(c, "issue tokens", err)
		return
	}

	_ = h.audit.Log(scoped, admin.ID, "tenant.register",
		service.WithMeta(map[string]any{"tenant_slug": tenant.Slug}),
		service.WithRequestInfo(c.ClientIP(), c.Request.UserAgent()),
	)

	c.JSON(http.StatusCreated, pair)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user within the resolved tenant.
func (h *AuthHandler) Login(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		badRequest(c, "Tenant not resolved.")
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid payload.")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		badRequest(c, "Email and password are required.")
		return
	}

	identifier := strconv.FormatInt(tenant.ID, 10) + ":" + strings.ToLower(strings.TrimSpace(req.Email))
	if !h.allow(c, "login", identifier, h.limits.LoginPerMinute, time.Minute) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Invalid credentials."})
			return
		}
		h.serverError(c, "authenticate", err)
		return
	}

	pair, err := h.sessions.IssuePair(ctx, user, tenant)
	if err != nil {
		h.serverError(c, "issue tokens", err)
		return
	}

	_ = h.audit.Log(ctx, user.ID, "auth.login",
		service.WithRequestInfo(c.ClientIP(), c.Request.UserAgent()),
	)

	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token: validates it against the liveness
// record, revokes it, and issues a brand-new pair. The token's own tenant
// claim drives tenant resolution here.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		badRequest(c, "Refresh token is required.")
		return
	}

	ctx := c.Request.Context()
	claims, err := h.sessions.ValidateRefresh(ctx, req.RefreshToken)
	if err != nil {
		unauthorizedToken(c, err)
		return
	}

	tenant, err := h.tenants.GetByID(ctx, claims.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "error_description": "Tenant not found."})
			return
		}
		h.serverError(c, "load tenant", err)
		return
	}

	scoped := tenantscope.Bind(ctx, tenantscope.Scope{TenantID: tenant.ID, TenantSlug: tenant.Slug})
	user, err := h.users.GetByID(scoped, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Unknown user."})
			return
		}
		h.serverError(c, "load user", err)
		return
	}

	pair, err := h.sessions.Rotate(scoped, claims, user, tenant)
	if err != nil {
		h.serverError(c, "rotate tokens", err)
		return
	}

	_ = h.audit.Log(scoped, user.ID, "auth.refresh",
		service.WithRequestInfo(c.ClientIP(), c.Request.UserAgent()),
	)

	c.JSON(http.StatusOK, pair)
}

// Logout revokes the presented refresh token. An already-invalid token is
// treated as logged out.
func (h *AuthHandler) Logout(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		badRequest(c, "Tenant not resolved.")
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		badRequest(c, "Refresh token is required.")
		return
	}

	ctx := c.Request.Context()
	claims, err := h.sessions.ValidateRefresh(ctx, req.RefreshToken)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	if claims.TenantID != tenant.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "tenant_mismatch", "error_description": "Tenant mismatch."})
		return
	}

	if err := h.sessions.RevokeRefresh(ctx, claims.TokenID); err != nil {
		h.serverError(c, "revoke refresh", err)
		return
	}

	_ = h.audit.Log(ctx, claims.UserID, "auth.logout",
		service.WithRequestInfo(c.ClientIP(), c.Request.UserAgent()),
	)

	c.Status(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword mints a reset ticket for the user if they exist. The
// response is 202 either way so callers cannot enumerate accounts.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		badRequest(c, "Tenant not resolved.")
		return
	}

	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		badRequest(c, "Email is required.")
		return
	}

	identifier := strconv.FormatInt(tenant.ID, 10) + ":" + strings.ToLower(strings.TrimSpace(req.Email))
	if !h.allow(c, "forgot", identifier, h.limits.ForgotPerQuarter, 15*time.Minute) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.Status(http.StatusAccepted)
			return
		}
		h.serverError(c, "lookup user", err)
		return
	}

	ticket, err := h.sessions.CreateResetTicket(ctx, tenant.ID, user.ID)
	if err != nil {
		h.serverError(c, "create reset ticket", err)
		return
	}

	// Notification fan-out is external; the ticket reaches the user through
	// the audit trail consumer for now.
	_ = h.audit.Log(ctx, user.ID, "auth.forgot_password",
		service.WithMeta(map[string]any{"reset_ticket": ticket}),
		service.WithRequestInfo(c.ClientIP(), c.Request.UserAgent()),
	)

	c.Status(http.StatusAccepted)
}

type resetPasswordRequest struct {
	Ticket      string `json:"ticket"`
	NewPassword string `json:"new_password"`
}

// ResetPassword consumes a single-use reset ticket and replaces the user's
// password. Whether the ticket expired, was consumed, or never existed is
// never revealed.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Ticket) == "" || req.NewPassword == "" {
		badRequest(c, "Ticket and new password are required.")
		return
	}

	ctx := c.Request.Context()
	tenantID, userID, err := h.sessions.ConsumeResetTicket(ctx, req.Ticket)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_ticket", "error_description": "Invalid or expired ticket."})
		return
	}

	tenant, err := h.tenants.GetByID(ctx, tenantID)
	if err != nil {
		h.serverError(c, "load tenant", err)
		return
	}

	scoped := tenantscope.Bind(ctx, tenantscope.Scope{TenantID: tenant.ID, TenantSlug: tenant.Slug})
	if err := h.users.SetPassword(scoped, userID, req.NewPassword); err != nil {
		h.serverError(c, "set password", err)
		return
	}

	_ = h.audit.Log(scoped, userID, "auth.reset_password",
		service.WithRequestInfo(c.ClientIP(), c.Request.UserAgent()),
	)

	c.Status(http.StatusOK)
}

type meResponse struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Department string   `json:"department,omitempty"`
	Title      string   `json:"title,omitempty"`
	Status     string   `json:"status"`
	Roles      []string `json:"roles"`
}

// Me returns the authenticated principal's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Not authenticated."})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), principal.UserID)
	if err != nil {
		h.serverError(c, "load user", err)
		return
	}

	c.JSON(http.StatusOK, meResponse{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Department: user.Department,
		Title:      user.Title,
		Status:     string(user.Status),
		Roles:      user.RoleKeys(),
	})
}

func (h *AuthHandler) allow(c *gin.Context, purpose, identifier string, limit int64, window time.Duration) bool {
	err := h.limiter.Allow(c.Request.Context(), purpose, identifier, limit, window)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrRateLimited) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limited",
			"error_description": "Rate limit exceeded. Retry later.",
		})
		return false
	}
	h.serverError(c, "rate limit", err)
	return false
}

func (h *AuthHandler) serverError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal error."})
}

func badRequest(c *gin.Context, description string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": description})
}

func unauthorizedToken(c *gin.Context, err error) {
	// Revocation and decoding failures look identical to the caller.
	if errors.Is(err, domain.ErrTokenRevoked) || errors.Is(err, domain.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid refresh token."})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal error."})
}
