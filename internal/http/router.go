package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/config"
	"github.com/mendyturner/xyberiq-app/internal/http/handler"
	"github.com/mendyturner/xyberiq-app/internal/http/middleware"
	"github.com/mendyturner/xyberiq-app/internal/tenant"
)

// NewRouter wires Gin routes and middleware.
//
// Tenant resolution runs only on routes that operate inside a tenant.
// Registration happens before a tenant exists, and refresh and password
// reset carry their tenant inside the token or ticket, so those routes
// skip the resolver.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	auth *middleware.Auth,
	resolver *tenant.Resolver,
	throttle *middleware.Throttle,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	if throttle != nil {
		r.Use(throttle.Handler())
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register-tenant", authHandler.RegisterTenant)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/reset-password", authHandler.ResetPassword)

		scoped := authGroup.Group("")
		scoped.Use(middleware.Tenant(resolver))
		{
			scoped.POST("/login", authHandler.Login)
			scoped.POST("/logout", authHandler.Logout)
			scoped.POST("/forgot-password", authHandler.ForgotPassword)
			scoped.GET("/me", auth.RequireAccess, authHandler.Me)
		}
	}

	return r
}
