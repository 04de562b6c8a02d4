package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/moments/internal/api/http/handlers"
	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Settings *handlers.SettingsHandler
	Admin    *handlers.AdminHandler
	Sessions *auth.SessionMiddleware
	Guard    *auth.Guard
	Metrics  *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Use(cfg.Sessions.Handle)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/logout", cfg.Auth.Logout)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Get("/confirm/:token", cfg.Auth.Confirm)
	authGroup.Post("/forget-password", cfg.Auth.ForgetPassword)
	authGroup.Post("/reset-password/:token", cfg.Auth.ResetPassword)
	authGroup.Post("/resend-confirm-email", auth.RequireSession(), cfg.Auth.ResendConfirmation)
	authGroup.Get("/me", auth.RequireSession(), cfg.Auth.Me)

	settings := app.Group("/settings", auth.Require(cfg.Guard, auth.CapabilityAccessProtected))
	settings.Post("/change-email", cfg.Settings.RequestEmailChange)
	settings.Get("/change-email/:token", cfg.Settings.ChangeEmail)
	settings.Post("/change-password", cfg.Settings.ChangePassword)

	admin := app.Group("/admin", auth.Require(cfg.Guard, auth.CapabilityModerate))
	admin.Post("/users/:id/lock", cfg.Admin.Lock)
	admin.Post("/users/:id/unlock", cfg.Admin.Unlock)
	admin.Post("/users/:id/block", cfg.Admin.Block)
	admin.Post("/users/:id/unblock", cfg.Admin.Unblock)
	admin.Put("/users/:id/role", auth.Require(cfg.Guard, auth.CapabilityAdminister), cfg.Admin.SetRole)
}
