package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// staffActions maps the path segment of each staff transition.
var staffActions = map[string]lifecycle.Transition{
	"assume":      lifecycle.TransitionAssume,
	"dispatch":    lifecycle.TransitionDispatch,
	"in-progress": lifecycle.TransitionSetInProgress,
	"resolve":     lifecycle.TransitionResolve,
	"close":       lifecycle.TransitionClose,
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Auth.StaffLogin)
	authGroup.Post("/companies/login", cfg.Auth.CompanyLogin)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", auth.RequireAuthenticated(), cfg.Tickets.ListTickets)
	tickets.Post("/", auth.RequireCompany(), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", auth.RequireAuthenticated(), cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", auth.RequireAuthenticated(), cfg.Tickets.AddComment)
	tickets.Post("/:id/reopen", auth.RequireCompany(), cfg.Tickets.Transition(lifecycle.TransitionReopen))
	for segment, transition := range staffActions {
		tickets.Post("/:id/"+segment, auth.RequireStaff(), cfg.Tickets.Transition(transition))
	}

	notifications := app.Group("/notifications", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllAsRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkAsRead)
	notifications.Delete("/:id", cfg.Notifications.Delete)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Post("/users", cfg.Auth.CreateUser)
	admin.Post("/companies", cfg.Auth.CreateCompany)
}
