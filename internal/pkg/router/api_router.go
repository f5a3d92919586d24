package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const (
	apiRateLimit  = 30
	apiRateWindow = time.Minute
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        apiRateLimit,
		Expiration: apiRateWindow,
		Storage:    h.deps.LimiterStorage,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/stripe/webhook" || strings.HasPrefix(c.Path(), "/api/admin")
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "rate_limited",
				"message": "Too many requests, please try again later",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Post("/apply", h.deps.Applications.HandleApply)
	api.Post("/apply/continue", h.deps.Applications.HandleContinue)
	api.Get("/stripe/verify-payment", h.deps.Applications.HandleVerifyPayment)
	api.Post("/booking", h.deps.Bookings.HandleBooking)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
