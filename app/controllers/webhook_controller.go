package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/billing"
)

type WebhookController struct {
	reconciler *billing.Reconciler
}

func NewWebhookController(reconciler *billing.Reconciler) *WebhookController {
	return &WebhookController{reconciler: reconciler}
}

// HandleStripeWebhook acknowledges a Stripe delivery. The status code drives
// Stripe's retry behaviour.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	res := wc.reconciler.HandleWebhook(ctx, rawBody, signature)
	if res.StatusCode >= fiber.StatusBadRequest {
		return c.Status(res.StatusCode).JSON(fiber.Map{"received": false, "error": res.Error})
	}
	return c.Status(res.StatusCode).JSON(fiber.Map{
		"received":  true,
		"duplicate": res.Duplicate,
		"outcome":   res.Outcome,
	})
}
