package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops-console/internal/api/http/handlers"
	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Links          *handlers.LinkHandler
	PINs           *handlers.PINHandler
	Auth           *handlers.AuthHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Get("/links/:tenant/:staff", cfg.Links.ResolveStaff)
	authGroup.Get("/links/:tenant", cfg.Links.ResolveTenant)
	authGroup.Post("/pin/verify", cfg.PINs.Verify)
	authGroup.Post("/owner/login", cfg.Auth.OwnerLogin)
	authGroup.Post("/token/refresh", cfg.Auth.Refresh)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/profile", cfg.Auth.Profile)
	protected.Post("/logout", cfg.Auth.Logout)
	protected.Post("/pin/rotate", cfg.PINs.Rotate)
	protected.Get("/pin/status", cfg.PINs.Status)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.StaffRoleOwner, domain.StaffRoleManager))
	staff.Get("/members", cfg.Staff.List)
	staff.Post("/members", cfg.Staff.Create)
	staff.Post("/members/:id/pin/reset", cfg.Staff.ResetPIN)
	staff.Post("/members/:id/unlock", cfg.Staff.Unlock)
	staff.Post("/members/:id/deactivate", cfg.Staff.Deactivate)
}
