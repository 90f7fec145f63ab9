package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Reads need any operator; changes need an owner.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole())
	owner := auth.RequireRole(domain.OperatorRoleOwner)

	admin.Get("/ai/status", cfg.Admin.AIStatus)
	admin.Post("/ai/start", owner, cfg.Admin.StartAI)
	admin.Post("/ai/stop", owner, cfg.Admin.StopAI)

	admin.Get("/tickets", cfg.Tickets.ListTickets)
	admin.Get("/tickets/:channel_id", cfg.Tickets.GetTicket)
	admin.Get("/tickets/:channel_id/summary", cfg.Tickets.Summary)
	admin.Get("/tickets/:channel_id/history", cfg.Tickets.History)
	admin.Post("/tickets/:channel_id/close", owner, cfg.Tickets.CloseTicket)
	admin.Post("/tickets/:channel_id/ai/reactivate", owner, cfg.Tickets.ReactivateAI)

	admin.Get("/teaches", cfg.Admin.ListTeaches)
	admin.Post("/teaches", owner, cfg.Admin.CreateTeach)
	admin.Delete("/teaches/:identifier", owner, cfg.Admin.DeleteTeach)

	admin.Get("/memory/stats", cfg.Admin.MemoryStats)
	admin.Post("/knowledge/refresh", owner, cfg.Admin.RefreshKnowledge)
	admin.Get("/metrics", cfg.Admin.Metrics)
}
