package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoachDesk/app/controllers"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries the wired controllers into the routers.
type Dependencies struct {
	Admin config.AdminConfig
	// LimiterStorage backs the API rate limiter. nil keeps counters in memory.
	LimiterStorage fiber.Storage

	Applications *controllers.ApplicationController
	Bookings     *controllers.BookingController
	Webhooks     *controllers.WebhookController
	AdminPanel   *controllers.AdminController
	Health       *controllers.HealthController
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Webhooks are registered first so the API limiter never throttles Stripe.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
