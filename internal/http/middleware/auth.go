package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/service"
	"github.com/mendyturner/xyberiq-app/internal/token"
)

const principalKey = "authPrincipal"

// Auth validates access tokens against the resolved tenant and attaches
// the authenticated principal.
type Auth struct {
	Codec *token.Codec
	Users *service.UserService
}

// RequireAccess ensures the request carries a valid access token whose
// tenant claim matches the resolved tenant, and that the user exists and is
// active within that tenant's scope.
func (m *Auth) RequireAccess(c *gin.Context) {
	resolved, ok := GetTenant(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_tenant", "error_description": "Tenant not resolved."})
		return
	}

	bearer := BearerToken(c)
	if bearer == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}

	claims, err := m.Codec.Decode(bearer)
	if err != nil || claims.Scope != token.ScopeAccess {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}
	if claims.TenantID != resolved.ID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tenant_mismatch", "error_description": "Tenant mismatch."})
		return
	}

	user, err := m.Users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Unknown user."})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "User lookup failed."})
		return
	}
	if user.Status != domain.UserActive {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user_inactive", "error_description": "User inactive."})
		return
	}

	c.Set(principalKey, domain.Principal{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Roles:    user.RoleKeys(),
		Status:   user.Status,
	})
	c.Next()
}

// GetPrincipal exposes the authenticated principal to handlers.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}
