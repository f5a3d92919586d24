package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/app/repository"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/billing"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

// ApplicationController handles trial and continuation applications.
type ApplicationController struct {
	repos    *repository.Repositories
	provider billing.PaymentProvider
	notifier Notifier
	pricing  config.PricingConfig
	baseURL  string
}

func NewApplicationController(repos *repository.Repositories, provider billing.PaymentProvider, notifier Notifier, pricing config.PricingConfig, baseURL string) *ApplicationController {
	return &ApplicationController{
		repos:    repos,
		provider: provider,
		notifier: notifier,
		pricing:  pricing,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

type applyRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email,max=255"`
	Phone         string `json:"phone" validate:"omitempty,max=30"`
	Goals         string `json:"goals" validate:"omitempty,max=4000"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=card bank_transfer"`
}

type continueRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Plan          string `json:"plan" validate:"omitempty,max=50"`
	Message       string `json:"message" validate:"omitempty,max=4000"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=card bank_transfer"`
}

func paymentMethod(raw string) models.PaymentMethod {
	if raw == string(models.PaymentMethodBankTransfer) {
		return models.PaymentMethodBankTransfer
	}
	return models.PaymentMethodCard
}

// HandleApply registers a trial application and starts payment.
func (ac *ApplicationController) HandleApply(c *fiber.Ctx) error {
	var req applyRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	ctx := c.UserContext()
	method := paymentMethod(req.PaymentMethod)

	client, err := ac.repos.Client.GetByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		client = &models.Client{
			Name:               strings.TrimSpace(req.Name),
			Email:              req.Email,
			Phone:              strings.TrimSpace(req.Phone),
			Goals:              strings.TrimSpace(req.Goals),
			TrialPaymentMethod: method,
		}
		if err := ac.repos.Client.Create(ctx, client); err != nil {
			log.Errorf("[Apply] Failed to create client %s: %v", req.Email, err)
			return jsonError(c, fiber.StatusInternalServerError, "create_failed", "Application could not be saved")
		}
	case err != nil:
		log.Errorf("[Apply] Client lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "lookup_failed", "Application could not be saved")
	case client.TrialPaid():
		return jsonError(c, fiber.StatusConflict, "already_paid", "The trial session has already been paid")
	default:
		client.Name = strings.TrimSpace(req.Name)
		client.Phone = strings.TrimSpace(req.Phone)
		client.Goals = strings.TrimSpace(req.Goals)
		client.TrialPaymentMethod = method
		if err := ac.repos.Client.Update(ctx, client); err != nil {
			log.Errorf("[Apply] Failed to update client %s: %v", client.ID, err)
			return jsonError(c, fiber.StatusInternalServerError, "update_failed", "Application could not be saved")
		}
	}

	if method == models.PaymentMethodBankTransfer {
		notify(ctx, "Apply", func(ctx context.Context) error {
			return ac.notifier.BankTransferApplicationReceived(ctx, client, ac.pricing.Trial)
		})
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":         true,
			"requiresPayment": false,
			"clientId":        client.ID,
		})
	}

	meta := billing.Metadata{Kind: billing.KindTrial, ClientID: client.ID}
	checkout, err := ac.startCheckout(ctx, client, meta, ac.pricing.Trial, "体験セッション")
	if err != nil {
		log.Errorf("[Apply] Checkout for client %s failed: %v", client.ID, err)
		return jsonError(c, fiber.StatusBadGateway, "checkout_failed", "Payment could not be started")
	}

	notify(ctx, "Apply", func(ctx context.Context) error {
		return ac.notifier.ApplicationReceived(ctx, client, true)
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":         true,
		"requiresPayment": true,
		"checkoutUrl":     checkout.URL,
		"sessionId":       checkout.ID,
		"clientId":        client.ID,
	})
}

// HandleContinue registers a continuation application for an existing client.
func (ac *ApplicationController) HandleContinue(c *fiber.Ctx) error {
	var req continueRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	ctx := c.UserContext()

	client, err := ac.repos.Client.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "client_not_found", "No client is registered with this email")
	}
	if err != nil {
		log.Errorf("[Apply] Client lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "lookup_failed", "Application could not be saved")
	}

	app := &models.ContinuationApplication{
		ClientID:      client.ID,
		Plan:          strings.TrimSpace(req.Plan),
		Message:       strings.TrimSpace(req.Message),
		PaymentMethod: paymentMethod(req.PaymentMethod),
		Amount:        ac.pricing.Continuation,
	}
	if app.Plan == "" {
		app.Plan = "standard"
	}
	if err := ac.repos.Application.Create(ctx, app); err != nil {
		log.Errorf("[Apply] Failed to create application for client %s: %v", client.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "create_failed", "Application could not be saved")
	}

	resp := fiber.Map{
		"success":         true,
		"requiresPayment": app.PaymentMethod == models.PaymentMethodCard,
		"applicationId":   app.ID,
		"clientId":        client.ID,
	}
	if app.PaymentMethod == models.PaymentMethodCard {
		meta := billing.Metadata{Kind: billing.KindContinuation, ClientID: client.ID, ApplicationID: app.ID}
		checkout, err := ac.startCheckout(ctx, client, meta, app.Amount, "継続プログラム")
		if err != nil {
			log.Errorf("[Apply] Checkout for application %s failed: %v", app.ID, err)
			return jsonError(c, fiber.StatusBadGateway, "checkout_failed", "Payment could not be started")
		}
		if err := ac.repos.Application.SetCheckoutSession(ctx, app.ID, checkout.ID); err != nil {
			log.Warnf("[Apply] Failed to store checkout %s on application %s: %v", checkout.ID, app.ID, err)
		}
		resp["checkoutUrl"] = checkout.URL
		resp["sessionId"] = checkout.ID
	}

	notify(ctx, "Apply", func(ctx context.Context) error {
		return ac.notifier.ContinuationApplicationReceived(ctx, client, app)
	})
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleVerifyPayment reports the state of a checkout after the redirect back.
func (ac *ApplicationController) HandleVerifyPayment(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("session_id"))
	if id == "" {
		return jsonError(c, fiber.StatusBadRequest, "missing_session_id", "session_id is required")
	}

	checkout, err := ac.provider.RetrieveCheckout(c.UserContext(), id)
	if err != nil {
		log.Warnf("[Apply] Checkout %s lookup failed: %v", id, err)
		return jsonError(c, fiber.StatusBadGateway, "lookup_failed", "Payment status is not available")
	}
	return c.JSON(fiber.Map{
		"success":       checkout.Paid(),
		"paymentStatus": checkout.PaymentStatus,
		"type":          checkout.Metadata.ResolveKind(),
		"clientId":      checkout.Metadata.ClientID,
		"applicationId": checkout.Metadata.ApplicationID,
	})
}

func (ac *ApplicationController) startCheckout(ctx context.Context, client *models.Client, meta billing.Metadata, amount int64, product string) (*billing.Checkout, error) {
	customerID := ""
	if client.StripeCustomerID != nil {
		customerID = *client.StripeCustomerID
	} else {
		id, err := ac.provider.CreateCustomer(ctx, client.Email, client.Name, billing.Metadata{ClientID: client.ID})
		if err != nil {
			return nil, err
		}
		if err := ac.repos.Client.SetStripeCustomerID(ctx, client.ID, id); err != nil {
			log.Warnf("[Apply] Failed to store customer %s on client %s: %v", id, client.ID, err)
		}
		customerID = id
	}

	return ac.provider.CreateCheckout(ctx, billing.CheckoutRequest{
		CustomerID:  customerID,
		Email:       client.Email,
		ProductName: product,
		Amount:      amount,
		SuccessURL:  ac.baseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   ac.baseURL + "/payment/cancel",
		Metadata:    meta,
	})
}
