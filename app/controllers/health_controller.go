package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Pinger is any dependency that can report its own reachability.
type Pinger func(ctx context.Context) error

type HealthController struct {
	checks map[string]Pinger
}

func NewHealthController(checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks}
}

// HandleHealth answers 503 when any dependency check fails.
func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	status, state := fiber.StatusOK, "ok"
	results := fiber.Map{}
	for name, ping := range hc.checks {
		if err := ping(ctx); err != nil {
			log.Warnf("[Health] %s check failed: %v", name, err)
			results[name] = err.Error()
			status, state = fiber.StatusServiceUnavailable, "degraded"
			continue
		}
		results[name] = "ok"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": state,
		"checks": results,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
