package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/app/repository"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

// ============================================================================
// ADMIN CONTROLLER - Repository Pattern
// ============================================================================

// AdminController serves the coach's back office API.
type AdminController struct {
	repos    *repository.Repositories
	notifier Notifier
	pricing  config.PricingConfig
	queue    QueueMonitor
	now      func() time.Time
}

// NewAdminController wires the admin handlers. queue may be nil when
// notifications are sent inline.
func NewAdminController(repos *repository.Repositories, notifier Notifier, pricing config.PricingConfig, queue QueueMonitor) *AdminController {
	return &AdminController{repos: repos, notifier: notifier, pricing: pricing, queue: queue, now: time.Now}
}

// handleError logs err and writes a generic 500.
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)
	return jsonError(c, fiber.StatusInternalServerError, "internal_error", message)
}

func (ac *AdminController) HandleClients(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, n, size := pageParams(c)
	status := c.Query("status")

	clients, err := ac.repos.Client.List(ctx, page, status)
	if err != nil {
		return ac.handleError(c, "Failed to list clients", err)
	}
	total, err := ac.repos.Client.Count(ctx, status)
	if err != nil {
		return ac.handleError(c, "Failed to count clients", err)
	}
	return c.JSON(paged(clients, total, n, size))
}

func (ac *AdminController) HandleClient(c *fiber.Ctx) error {
	ctx := c.UserContext()
	client, err := ac.repos.Client.GetByID(ctx, c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "client_not_found", "Client not found")
	}
	if err != nil {
		return ac.handleError(c, "Failed to load client", err)
	}

	sessions, err := ac.repos.Session.ListByClient(ctx, client.ID)
	if err != nil {
		return ac.handleError(c, "Failed to load sessions", err)
	}
	emails, err := ac.repos.EmailHistory.List(ctx, repository.Page{Limit: 50}, repository.EmailHistoryFilter{ClientID: client.ID})
	if err != nil {
		return ac.handleError(c, "Failed to load email history", err)
	}
	return c.JSON(fiber.Map{
		"client":       client,
		"sessions":     sessions,
		"emailHistory": emails,
	})
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleClientStatus applies a manual status change. Illegal transitions get 409.
func (ac *AdminController) HandleClientStatus(c *fiber.Ctx) error {
	var req statusRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	to := models.ClientStatus(req.Status)
	if !models.ClientTransitions.Known(to) {
		return jsonError(c, fiber.StatusBadRequest, "unknown_status", "Unknown status "+req.Status)
	}

	res, cur, err := ac.repos.Client.TransitionStatus(c.UserContext(), c.Params("id"), to)
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "client_not_found", "Client not found")
	}
	if err != nil {
		return ac.handleError(c, "Failed to update status", err)
	}
	if res == models.TransitionRejected {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "illegal_transition",
			"message": models.ClientTransitions.Check(cur, to).Error(),
			"current": cur,
		})
	}
	return c.JSON(fiber.Map{"success": true, "status": to, "changed": res == models.TransitionApplied})
}

// HandleConfirmTrialPayment records a trial fee received by bank transfer.
func (ac *AdminController) HandleConfirmTrialPayment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	client, err := ac.repos.Client.GetByID(ctx, c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "client_not_found", "Client not found")
	}
	if err != nil {
		return ac.handleError(c, "Failed to load client", err)
	}

	paidAt := ac.now()
	res, err := ac.repos.Client.MarkTrialPaid(ctx, client.ID, paidAt)
	if err != nil {
		return ac.handleError(c, "Failed to record payment", err)
	}
	switch res {
	case models.TransitionNoop:
		return c.JSON(fiber.Map{"success": true, "alreadyPaid": true})
	case models.TransitionRejected:
		return jsonError(c, fiber.StatusConflict, "illegal_transition", "Trial payment is "+string(client.TrialPaymentStatus))
	}

	if err := ac.repos.Payment.CreateTrialPayment(ctx, &models.TrialPaymentTransaction{
		LedgerEntry: models.LedgerEntry{
			ClientID: &client.ID,
			Provider: models.PaymentProviderBankTransfer,
			Amount:   ac.pricing.Trial,
			Currency: "jpy",
			Status:   models.PaymentStatusSucceeded,
			PaidAt:   &paidAt,
		},
	}); err != nil {
		log.Errorf("[Admin] Failed to write trial ledger for client %s: %v", client.ID, err)
	}

	notify(ctx, "Admin", func(ctx context.Context) error {
		return ac.notifier.TrialPaymentConfirmed(ctx, client, ac.pricing.Trial)
	})
	return c.JSON(fiber.Map{"success": true})
}
