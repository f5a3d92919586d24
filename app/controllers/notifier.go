package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/app/models"
)

// Notifier is the subset of notify.Notifier the handlers use.
type Notifier interface {
	ApplicationReceived(ctx context.Context, client *models.Client, requiresPayment bool) error
	BankTransferApplicationReceived(ctx context.Context, client *models.Client, amount int64) error
	TrialPaymentConfirmed(ctx context.Context, client *models.Client, amount int64) error
	ContinuationApplicationReceived(ctx context.Context, client *models.Client, app *models.ContinuationApplication) error
	ContinuationPaymentConfirmed(ctx context.Context, client *models.Client, app *models.ContinuationApplication) error
	BookingConfirmed(ctx context.Context, client *models.Client, session *models.Session) error
	SessionCompleted(ctx context.Context, client *models.Client, session *models.Session, promote bool) error
}

// notify runs fn on a context detached from the request. Failures are logged
// and never change the response.
func notify(ctx context.Context, scope string, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		log.Errorf("[%s] Notification failed: %v", scope, err)
	}
}
