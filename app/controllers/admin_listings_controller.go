package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/app/repository"
)

func (ac *AdminController) HandleSessions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, n, size := pageParams(c)

	sessions, err := ac.repos.Session.List(ctx, page)
	if err != nil {
		return ac.handleError(c, "Failed to list sessions", err)
	}
	total, err := ac.repos.Session.Count(ctx)
	if err != nil {
		return ac.handleError(c, "Failed to count sessions", err)
	}
	return c.JSON(paged(sessions, total, n, size))
}

func (ac *AdminController) HandleApplications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, n, size := pageParams(c)
	status := c.Query("status")

	apps, err := ac.repos.Application.List(ctx, page, status)
	if err != nil {
		return ac.handleError(c, "Failed to list applications", err)
	}
	total, err := ac.repos.Application.Count(ctx, status)
	if err != nil {
		return ac.handleError(c, "Failed to count applications", err)
	}
	return c.JSON(paged(apps, total, n, size))
}

func (ac *AdminController) HandlePayments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, n, size := pageParams(c)

	payments, err := ac.repos.Payment.ListPayments(ctx, page)
	if err != nil {
		return ac.handleError(c, "Failed to list payments", err)
	}
	trials, err := ac.repos.Payment.ListTrialPayments(ctx, page)
	if err != nil {
		return ac.handleError(c, "Failed to list trial payments", err)
	}
	continuation, trial, err := ac.repos.Payment.CountPayments(ctx)
	if err != nil {
		return ac.handleError(c, "Failed to count payments", err)
	}
	return c.JSON(fiber.Map{
		"payments":      payments,
		"trialPayments": trials,
		"totals":        fiber.Map{"payments": continuation, "trialPayments": trial},
		"page":          n,
		"pageSize":      size,
	})
}

func (ac *AdminController) HandleEmailHistory(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, n, size := pageParams(c)
	filter := repository.EmailHistoryFilter{
		ClientID:  c.Query("client_id"),
		SessionID: c.Query("session_id"),
		Status:    c.Query("status"),
	}

	rows, err := ac.repos.EmailHistory.List(ctx, page, filter)
	if err != nil {
		return ac.handleError(c, "Failed to list email history", err)
	}
	total, err := ac.repos.EmailHistory.Count(ctx, filter)
	if err != nil {
		return ac.handleError(c, "Failed to count email history", err)
	}
	return c.JSON(paged(rows, total, n, size))
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// HandleApplicationDecision approves or rejects a continuation application.
// Approving a bank transfer application also settles its payment.
func (ac *AdminController) HandleApplicationDecision(c *fiber.Ctx) error {
	var req decisionRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	ctx := c.UserContext()

	app, err := ac.repos.Application.GetByID(ctx, c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "application_not_found", "Application not found")
	}
	if err != nil {
		return ac.handleError(c, "Failed to load application", err)
	}

	to := models.ApplicationStatusRejected
	if req.Decision == "approve" {
		to = models.ApplicationStatusApproved
	}
	now := ac.now()
	res, cur, err := ac.repos.Application.Decide(ctx, app.ID, to, now)
	if err != nil {
		return ac.handleError(c, "Failed to record decision", err)
	}
	if res == models.TransitionRejected {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "illegal_transition",
			"message": models.ApplicationTransitions.Check(cur, to).Error(),
			"current": cur,
		})
	}

	if to == models.ApplicationStatusApproved && res == models.TransitionApplied && app.PaymentMethod == models.PaymentMethodBankTransfer {
		if err := ac.settleBankTransfer(ctx, app, now); err != nil {
			return ac.handleError(c, "Failed to record payment", err)
		}
	}
	return c.JSON(fiber.Map{"success": true, "status": to, "changed": res == models.TransitionApplied})
}

func (ac *AdminController) settleBankTransfer(ctx context.Context, app *models.ContinuationApplication, paidAt time.Time) error {
	res, err := ac.repos.Application.MarkPaid(ctx, app.ID, paidAt)
	if err != nil {
		return err
	}
	if res != models.TransitionApplied {
		return nil
	}

	if err := ac.repos.Payment.CreatePayment(ctx, &models.PaymentTransaction{
		ContinuationApplicationID: &app.ID,
		LedgerEntry: models.LedgerEntry{
			ClientID: &app.ClientID,
			Provider: models.PaymentProviderBankTransfer,
			Amount:   app.Amount,
			Currency: app.Currency,
			Status:   models.PaymentStatusSucceeded,
			PaidAt:   &paidAt,
		},
	}); err != nil {
		log.Errorf("[Admin] Failed to write ledger for application %s: %v", app.ID, err)
	}

	if promoted, _, err := ac.repos.Client.TransitionStatus(ctx, app.ClientID, models.ClientStatusActive); err != nil {
		log.Errorf("[Admin] Failed to activate client %s: %v", app.ClientID, err)
	} else if promoted == models.TransitionRejected {
		log.Infof("[Admin] Client %s not promoted to active from its current state", app.ClientID)
	}

	if app.Client != nil {
		notify(ctx, "Admin", func(ctx context.Context) error {
			return ac.notifier.ContinuationPaymentConfirmed(ctx, app.Client, app)
		})
	}
	return nil
}
