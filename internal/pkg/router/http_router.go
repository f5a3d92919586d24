package router

import (
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", h.deps.Health.HandleHealth)

	// Stripe endpoints read the raw body, so nothing may parse or rewrite it.
	app.Post("/webhook", h.deps.Webhooks.HandleStripeWebhook)
	app.Post("/api/stripe/webhook", h.deps.Webhooks.HandleStripeWebhook)

	h.registerAdminRoutes(app)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
