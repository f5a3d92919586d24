package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/events"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/metrics"
)

// Notifier sends payment confirmations. Failures never fail reconciliation.
type Notifier interface {
	TrialPaymentConfirmed(ctx context.Context, client *models.Client, amount int64) error
	ContinuationPaymentConfirmed(ctx context.Context, client *models.Client, app *models.ContinuationApplication) error
}

// Publisher announces settled payments to other systems.
type Publisher interface {
	PublishPaymentSucceeded(ctx context.Context, evt events.PaymentSucceeded) error
}

// Archiver keeps a copy of every verified webhook payload.
type Archiver interface {
	ArchiveWebhook(ctx context.Context, eventID string, receivedAt time.Time, payload []byte) error
}

type Option func(*Reconciler)

func WithNotifier(n Notifier) Option   { return func(r *Reconciler) { r.notifier = n } }
func WithPublisher(p Publisher) Option { return func(r *Reconciler) { r.publisher = p } }
func WithArchiver(a Archiver) Option   { return func(r *Reconciler) { r.archiver = a } }

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler applies verified Stripe events to clients, applications and
// the payment ledgers.
type Reconciler struct {
	repo      Repository
	verifier  EventVerifier
	notifier  Notifier
	publisher Publisher
	archiver  Archiver
	now       func() time.Time
}

// NewReconciler creates a reconciler from an injected repository.
func NewReconciler(repo Repository, verifier EventVerifier, opts ...Option) *Reconciler {
	r := &Reconciler{repo: repo, verifier: verifier, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleWebhook verifies, records and applies one webhook delivery.
// 2xx tells the provider to stop retrying, 5xx asks it to retry later.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) WebhookResult {
	start := time.Now()

	evt, err := r.verifier.Verify(payload, signatureHeader)
	if err != nil {
		log.Warnf("[Billing] Rejected webhook: %v", err)
		metrics.WebhookEvents.WithLabelValues("unknown", OutcomeInvalidSignature).Inc()
		return WebhookResult{StatusCode: http.StatusBadRequest, Outcome: OutcomeInvalidSignature, Error: "invalid signature"}
	}
	defer func() {
		metrics.WebhookDuration.WithLabelValues(evt.Type).Observe(time.Since(start).Seconds())
	}()

	result := WebhookResult{StatusCode: http.StatusOK, EventID: evt.ID, EventType: evt.Type}
	r.archive(ctx, evt)

	created, stored, err := r.repo.CreateWebhookEventIfNotExists(ctx, &models.StripeWebhookEvent{
		EventID:        evt.ID,
		EventType:      evt.Type,
		PayloadJSON:    string(evt.Payload),
		SignatureValid: true,
	})
	if err != nil {
		log.Errorf("[Billing] Failed to record webhook event %s: %v", evt.ID, err)
		return r.finish(result, OutcomeError, err)
	}
	if !created && stored.Settled() {
		log.Infof("[Billing] Duplicate webhook event %s (%s)", evt.ID, evt.Type)
		result.Duplicate = true
		return r.finish(result, OutcomeDuplicate, nil)
	}

	outcome, procErr := r.apply(ctx, evt)

	errMsg := ""
	if procErr != nil {
		errMsg = procErr.Error()
	}
	if err := r.repo.MarkWebhookProcessed(ctx, stored.ID, errMsg); err != nil {
		log.Errorf("[Billing] Failed to mark webhook event %s processed: %v", evt.ID, err)
	}
	return r.finish(result, outcome, procErr)
}

func (r *Reconciler) finish(result WebhookResult, outcome string, err error) WebhookResult {
	result.Outcome = outcome
	if err != nil {
		result.StatusCode = http.StatusInternalServerError
		result.Outcome = OutcomeError
		result.Error = err.Error()
	}
	metrics.WebhookEvents.WithLabelValues(result.EventType, result.Outcome).Inc()
	return result
}

func (r *Reconciler) apply(ctx context.Context, evt *PaymentEvent) (string, error) {
	switch evt.Type {
	case EventCheckoutCompleted:
		if evt.Checkout == nil {
			return OutcomeIgnored, nil
		}
		switch evt.Checkout.Metadata.ResolveKind() {
		case KindTrial:
			return r.settleTrialCheckout(ctx, evt)
		case KindContinuation:
			return r.settleContinuationCheckout(ctx, evt)
		}
		log.Warnf("[Billing] Checkout %s has no usable metadata, ignoring", evt.Checkout.ID)
		return OutcomeIgnored, nil
	case EventPaymentIntentSucceeded:
		return r.settleIntent(ctx, evt)
	case EventPaymentIntentFailed:
		return r.failIntent(ctx, evt)
	}
	log.Debugf("[Billing] Ignoring event %s of type %s", evt.ID, evt.Type)
	return OutcomeIgnored, nil
}

func (r *Reconciler) settleTrialCheckout(ctx context.Context, evt *PaymentEvent) (string, error) {
	co := evt.Checkout
	if co.Metadata.ClientID == "" {
		log.Warnf("[Billing] Trial checkout %s without client_id, ignoring", co.ID)
		return OutcomeIgnored, nil
	}
	client, err := r.repo.GetClient(ctx, co.Metadata.ClientID)
	if errors.Is(err, ErrEntityNotFound) {
		log.Warnf("[Billing] Trial checkout %s references unknown client %s", co.ID, co.Metadata.ClientID)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	paidAt := r.now()
	res, err := r.repo.SettleTrial(ctx, client.ID, co.CustomerID, paidAt)
	if err != nil {
		return "", err
	}
	if res == models.TransitionRejected {
		log.Warnf("[Billing] Trial payment for client %s rejected from state %s", client.ID, client.TrialPaymentStatus)
		return OutcomeRejected, nil
	}

	entry := ledgerEntry(client.ID, co.ID, co.PaymentIntentID, co.CustomerID, co.AmountTotal, co.Currency, models.PaymentStatusSucceeded)
	entry.PaidAt = &paidAt
	if err := r.repo.UpsertTrialLedger(ctx, &models.TrialPaymentTransaction{LedgerEntry: entry}); err != nil {
		log.Errorf("[Billing] Failed to write trial ledger for checkout %s: %v", co.ID, err)
	}

	if res == models.TransitionNoop {
		return OutcomeNoop, nil
	}

	log.Infof("[Billing] Trial payment settled for client %s (checkout %s)", client.ID, co.ID)
	if r.notifier != nil {
		if err := r.notifier.TrialPaymentConfirmed(ctx, client, co.AmountTotal); err != nil {
			log.Errorf("[Billing] Trial confirmation for client %s failed: %v", client.ID, err)
		}
	}
	r.publish(ctx, events.PaymentSucceeded{
		EventID:           evt.ID,
		Kind:              KindTrial,
		ClientID:          client.ID,
		Amount:            co.AmountTotal,
		Currency:          co.Currency,
		CheckoutSessionID: co.ID,
		PaymentIntentID:   co.PaymentIntentID,
		PaidAt:            paidAt,
	})
	return OutcomeApplied, nil
}

func (r *Reconciler) settleContinuationCheckout(ctx context.Context, evt *PaymentEvent) (string, error) {
	co := evt.Checkout
	if co.Metadata.ApplicationID == "" {
		log.Warnf("[Billing] Continuation checkout %s without application id, ignoring", co.ID)
		return OutcomeIgnored, nil
	}
	app, err := r.repo.GetApplication(ctx, co.Metadata.ApplicationID)
	if errors.Is(err, ErrEntityNotFound) {
		log.Warnf("[Billing] Continuation checkout %s references unknown application %s", co.ID, co.Metadata.ApplicationID)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	paidAt := r.now()
	res, err := r.repo.SettleContinuation(ctx, app.ID, app.ClientID, co.PaymentIntentID, paidAt)
	if err != nil {
		return "", err
	}
	if res == models.TransitionRejected {
		log.Warnf("[Billing] Continuation payment for application %s rejected from state %s", app.ID, app.PaymentStatus)
		return OutcomeRejected, nil
	}

	entry := ledgerEntry(app.ClientID, co.ID, co.PaymentIntentID, co.CustomerID, co.AmountTotal, co.Currency, models.PaymentStatusSucceeded)
	entry.PaidAt = &paidAt
	if err := r.repo.UpsertContinuationLedger(ctx, &models.PaymentTransaction{
		ContinuationApplicationID: &app.ID,
		LedgerEntry:               entry,
	}); err != nil {
		log.Errorf("[Billing] Failed to write ledger for checkout %s: %v", co.ID, err)
	}

	if res == models.TransitionNoop {
		return OutcomeNoop, nil
	}

	log.Infof("[Billing] Continuation payment settled for application %s (checkout %s)", app.ID, co.ID)
	if r.notifier != nil {
		client, err := r.repo.GetClient(ctx, app.ClientID)
		if err == nil {
			app.Amount = co.AmountTotal
			err = r.notifier.ContinuationPaymentConfirmed(ctx, client, app)
		}
		if err != nil {
			log.Errorf("[Billing] Continuation confirmation for application %s failed: %v", app.ID, err)
		}
	}
	r.publish(ctx, events.PaymentSucceeded{
		EventID:           evt.ID,
		Kind:              KindContinuation,
		ClientID:          app.ClientID,
		ApplicationID:     app.ID,
		Amount:            co.AmountTotal,
		Currency:          co.Currency,
		CheckoutSessionID: co.ID,
		PaymentIntentID:   co.PaymentIntentID,
		PaidAt:            paidAt,
	})
	return OutcomeApplied, nil
}

func (r *Reconciler) settleIntent(ctx context.Context, evt *PaymentEvent) (string, error) {
	pi := evt.Intent
	if pi == nil || pi.ID == "" || (pi.Metadata.ClientID == "" && pi.Metadata.ApplicationID == "") {
		return OutcomeIgnored, nil
	}
	n, err := r.repo.MarkLedgerSucceeded(ctx, pi.ID, pi.ChargeID, r.now())
	if err != nil {
		log.Errorf("[Billing] Failed to settle ledger for payment intent %s: %v", pi.ID, err)
		return OutcomeIgnored, nil
	}
	if n == 0 {
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

func (r *Reconciler) failIntent(ctx context.Context, evt *PaymentEvent) (string, error) {
	pi := evt.Intent
	if pi == nil {
		return OutcomeIgnored, nil
	}
	meta := pi.Metadata

	var (
		res      models.TransitionResult
		err      error
		clientID = meta.ClientID
	)
	switch meta.ResolveKind() {
	case KindTrial:
		if clientID == "" {
			return OutcomeIgnored, nil
		}
		res, err = r.repo.FailTrial(ctx, clientID)
	case KindContinuation:
		if meta.ApplicationID == "" {
			return OutcomeIgnored, nil
		}
		res, err = r.repo.FailContinuation(ctx, meta.ApplicationID)
	default:
		return OutcomeIgnored, nil
	}
	if errors.Is(err, ErrEntityNotFound) {
		log.Warnf("[Billing] Failed payment %s references unknown entity", pi.ID)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	log.Warnf("[Billing] Payment %s failed: %s %s", pi.ID, pi.FailureCode, pi.FailureMessage)

	entry := ledgerEntry(clientID, "", pi.ID, pi.CustomerID, pi.Amount, pi.Currency, models.PaymentStatusFailed)
	if pi.FailureCode != "" {
		entry.FailureCode = &pi.FailureCode
	}
	if pi.FailureMessage != "" {
		entry.FailureMessage = &pi.FailureMessage
	}
	var ledgerErr error
	if meta.ResolveKind() == KindTrial {
		ledgerErr = r.repo.UpsertTrialLedger(ctx, &models.TrialPaymentTransaction{LedgerEntry: entry})
	} else {
		ledgerErr = r.repo.UpsertContinuationLedger(ctx, &models.PaymentTransaction{
			ContinuationApplicationID: &meta.ApplicationID,
			LedgerEntry:               entry,
		})
	}
	if ledgerErr != nil {
		log.Errorf("[Billing] Failed to write failed ledger row for payment intent %s: %v", pi.ID, ledgerErr)
	}

	switch res {
	case models.TransitionRejected:
		log.Warnf("[Billing] Ignoring stale failure for payment intent %s", pi.ID)
		return OutcomeRejected, nil
	case models.TransitionNoop:
		return OutcomeNoop, nil
	}
	return OutcomeApplied, nil
}

func (r *Reconciler) archive(ctx context.Context, evt *PaymentEvent) {
	if r.archiver == nil {
		return
	}
	if err := r.archiver.ArchiveWebhook(ctx, evt.ID, r.now(), evt.Payload); err != nil {
		log.Warnf("[Billing] Failed to archive webhook %s: %v", evt.ID, err)
	}
}

func (r *Reconciler) publish(ctx context.Context, evt events.PaymentSucceeded) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishPaymentSucceeded(ctx, evt); err != nil {
		log.Warnf("[Billing] Failed to publish payment %s: %v", evt.EventID, err)
	}
}

func ledgerEntry(clientID, checkoutID, intentID, customerID string, amount int64, currency string, status models.PaymentStatus) models.LedgerEntry {
	if currency == "" {
		currency = "jpy"
	}
	return models.LedgerEntry{
		ClientID:                models.StringPtr(clientID),
		Provider:                models.PaymentProviderStripe,
		StripeCheckoutSessionID: models.StringPtr(checkoutID),
		StripePaymentIntentID:   models.StringPtr(intentID),
		StripeCustomerID:        models.StringPtr(customerID),
		Amount:                  amount,
		Currency:                currency,
		Status:                  status,
	}
}
