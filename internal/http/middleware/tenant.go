package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/tenant"
	"github.com/mendyturner/xyberiq-app/internal/tenantscope"
)

// TenantHeader is the explicit tenant selector header.
const TenantHeader = "X-Tenant"

const tenantKey = "resolvedTenant"

// Tenant resolves the acting tenant from the selector header or bearer
// token and binds the tenant scope to the request context for its entire
// duration. The scope ends with the request; nothing survives it.
func Tenant(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		selector := c.Request.Header.Get(TenantHeader)
		bearer := BearerToken(c)

		resolved, err := resolver.Resolve(c.Request.Context(), selector, bearer)
		if err != nil {
			abortResolution(c, err)
			return
		}

		scoped := tenantscope.Bind(c.Request.Context(), tenantscope.Scope{
			TenantID:   resolved.ID,
			TenantSlug: resolved.Slug,
		})
		c.Request = c.Request.WithContext(scoped)
		c.Set(tenantKey, resolved)
		c.Next()
	}
}

// GetTenant extracts the resolved tenant from gin.
func GetTenant(c *gin.Context) (domain.Tenant, bool) {
	value, ok := c.Get(tenantKey)
	if !ok {
		return domain.Tenant{}, false
	}
	resolved, ok := value.(domain.Tenant)
	return resolved, ok
}

// BearerToken extracts the bearer credential from the Authorization header,
// or "" when absent.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortResolution(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "error_description": "Tenant not found."})
	case errors.Is(err, domain.ErrTenantMismatch):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tenant_mismatch", "error_description": "Tenant mismatch."})
	case errors.Is(err, domain.ErrMissingTenantClaim), errors.Is(err, domain.ErrInvalidToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid bearer token."})
	case errors.Is(err, domain.ErrMissingTenantIdentifier):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_tenant", "error_description": "Missing tenant identifier."})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Tenant resolution failed."})
	}
}
