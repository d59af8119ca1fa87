package main

import (
	"github.com/gin-gonic/gin"
	"github.com/vetrai/auth-service/internal/config"
	"github.com/vetrai/auth-service/internal/handlers"
	"github.com/vetrai/auth-service/internal/middleware"
	"github.com/vetrai/auth-service/internal/models"
	"github.com/vetrai/auth-service/internal/services"
	"github.com/vetrai/auth-service/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Credential endpoints sit behind a per-IP limiter: a 429 is cheaper
	// than a bcrypt verification.
	credLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginRPS, cfg.RateLimit.LoginBurst)

	r.GET("/health", handlers.Health(models.GetDB()))

	api := r.Group("/api")
	{
		// Public auth routes
		auth := api.Group("/auth", credLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.authService))
		{
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.GET("/auth/me", svc.authHandler.Me)
			protected.PUT("/auth/me", svc.authHandler.UpdateMe)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)
		}

		// Admin routes: org_admin and above; organization scope is enforced
		// in the service layer, super_admin crosses organizations.
		admin := api.Group("")
		admin.Use(
			middleware.AuthRequired(svc.authService),
			middleware.RequireRole(services.RoleOrgAdmin),
			middleware.AuditWrites(svc.audit),
		)
		{
			admin.GET("/users", svc.userHandler.List)
			admin.GET("/users/:id", svc.userHandler.Get)
			admin.PUT("/users/:id", svc.userHandler.Update)
		}

		// Deactivation crosses into destructive territory: super_admin only.
		super := api.Group("")
		super.Use(
			middleware.AuthRequired(svc.authService),
			middleware.RequireRole(services.RoleSuperAdmin),
			middleware.AuditWrites(svc.audit),
		)
		{
			super.DELETE("/users/:id", svc.userHandler.Deactivate)
		}
	}
}
