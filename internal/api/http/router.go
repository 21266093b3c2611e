package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bridge/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bridge/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Webhooks    *handlers.WebhookHandler
	Tickets     *handlers.TicketsHandler
	Initialize  *handlers.InitializeHandler
	WebhookAuth *auth.WebhookCredentials
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/initialize", cfg.Initialize.Initialize)

	webhooks := app.Group("/webhook")
	webhooks.Post("/chat-event", cfg.Webhooks.ChatEvent)
	webhooks.Post("/ticket-event", cfg.WebhookAuth.Handle(), cfg.Webhooks.TicketEvent)

	app.Get("/tickets/:roomId", cfg.Tickets.RoomTickets)
	app.Get("/ticket/:ticketId", cfg.Tickets.LiveTicket)
}
