package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/factoryops/jobdesk-permit/internal/api/http/handlers"
	"github.com/factoryops/jobdesk-permit/internal/auth"
	"github.com/factoryops/jobdesk-permit/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Permissions    *handlers.PermissionHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Get("/jobdesks", cfg.Admin.ListJobdesks)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Auth.StaffLogin)
	authGroup.Post("/admin/login", cfg.Auth.AdminLogin)
	authGroup.Post("/staff/logout", cfg.AuthMiddleware.Handle, auth.RequireStaff(), cfg.Auth.StaffLogout)
	authGroup.Post("/admin/logout", cfg.AuthMiddleware.Handle, auth.RequireAdmin(), cfg.Auth.AdminLogout)

	app.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireStaff(), cfg.Permissions.Me)
	app.Get("/me/history", cfg.AuthMiddleware.Handle, auth.RequireStaff(), cfg.Permissions.History)

	permissions := app.Group("/permissions", cfg.AuthMiddleware.Handle)
	permissions.Get("/active", auth.RequireAny(), cfg.Permissions.Active)
	permissions.Post("/", auth.RequireStaff(), cfg.Permissions.Start)
	permissions.Post("/:id/end", auth.RequireStaff(), cfg.Permissions.End)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/staff", cfg.Admin.ListStaff)
	admin.Post("/staff", cfg.Admin.CreateStaff)
	admin.Put("/staff/:id", cfg.Admin.UpdateStaff)
	admin.Delete("/staff/:id", cfg.Admin.DeleteStaff)
	admin.Get("/jobdesks", cfg.Admin.ListJobdesks)
	admin.Post("/jobdesks", cfg.Admin.CreateJobdesk)
	admin.Put("/jobdesks/:id", cfg.Admin.UpdateJobdesk)
	admin.Delete("/jobdesks/:id", cfg.Admin.DeleteJobdesk)
	admin.Get("/settings", cfg.Admin.GetSettings)
	admin.Put("/settings", cfg.Admin.UpdateSettings)
	admin.Get("/logs", cfg.Admin.Logs)
	admin.Get("/logs/export", cfg.Admin.ExportLogs)
	admin.Post("/permissions/:id/end", cfg.Permissions.AdminEnd)
}
