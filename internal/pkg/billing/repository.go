package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CoachDesk/app/models"
)

// ErrEntityNotFound is returned when metadata points at a row that does not exist.
var ErrEntityNotFound = errors.New("billing entity not found")

// Repository provides DB operations used by the reconciler.
type Repository interface {
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.StripeWebhookEvent) (bool, *models.StripeWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error

	GetClient(ctx context.Context, id string) (*models.Client, error)
	GetApplication(ctx context.Context, id string) (*models.ContinuationApplication, error)

	SettleTrial(ctx context.Context, clientID, customerID string, paidAt time.Time) (models.TransitionResult, error)
	SettleContinuation(ctx context.Context, applicationID, clientID, paymentIntentID string, paidAt time.Time) (models.TransitionResult, error)
	FailTrial(ctx context.Context, clientID string) (models.TransitionResult, error)
	FailContinuation(ctx context.Context, applicationID string) (models.TransitionResult, error)

	UpsertTrialLedger(ctx context.Context, row *models.TrialPaymentTransaction) error
	UpsertContinuationLedger(ctx context.Context, row *models.PaymentTransaction) error
	MarkLedgerSucceeded(ctx context.Context, paymentIntentID, chargeID string, paidAt time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.StripeWebhookEvent) (bool, *models.StripeWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.StripeWebhookEvent
	if err := db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.StripeWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, entityErr(err)
	}
	return &client, nil
}

func (r *gormRepository) GetApplication(ctx context.Context, id string) (*models.ContinuationApplication, error) {
	var app models.ContinuationApplication
	if err := r.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, entityErr(err)
	}
	return &app, nil
}

// SettleTrial marks the trial payment succeeded, moves an applied client to
// trial_booked and stores the customer id when none is known yet.
func (r *gormRepository) SettleTrial(ctx context.Context, clientID, customerID string, paidAt time.Time) (models.TransitionResult, error) {
	var res models.TransitionResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, _, err = models.CompareAndSet(tx, &models.Client{}, clientID, "trial_payment_status",
			models.PaymentTransitions, models.PaymentStatusSucceeded, map[string]any{"trial_paid_at": paidAt})
		if err != nil || res != models.TransitionApplied {
			return err
		}
		if _, _, err = models.CompareAndSet(tx, &models.Client{}, clientID, "status",
			models.ClientTransitions, models.ClientStatusTrialBooked, nil); err != nil {
			return err
		}
		if customerID == "" {
			return nil
		}
		return tx.Model(&models.Client{}).
			Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", clientID).
			Update("stripe_customer_id", customerID).Error
	})
	return res, entityErr(err)
}

// SettleContinuation marks the application paid and approved and promotes
// the client to active in the same transaction. A client that cannot become
// active (or no longer exists) keeps its status.
func (r *gormRepository) SettleContinuation(ctx context.Context, applicationID, clientID, paymentIntentID string, paidAt time.Time) (models.TransitionResult, error) {
	var res models.TransitionResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		extra := map[string]any{"paid_at": paidAt}
		if paymentIntentID != "" {
			extra["stripe_payment_intent_id"] = paymentIntentID
		}
		var err error
		res, _, err = models.CompareAndSet(tx, &models.ContinuationApplication{}, applicationID, "payment_status",
			models.PaymentTransitions, models.PaymentStatusSucceeded, extra)
		if err != nil || res != models.TransitionApplied {
			return err
		}
		if _, _, err = models.CompareAndSet(tx, &models.ContinuationApplication{}, applicationID, "status",
			models.ApplicationTransitions, models.ApplicationStatusApproved, map[string]any{"approved_at": paidAt}); err != nil {
			return err
		}
		if clientID == "" {
			return nil
		}
		_, _, err = models.CompareAndSet(tx, &models.Client{}, clientID, "status",
			models.ClientTransitions, models.ClientStatusActive, nil)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	})
	return res, entityErr(err)
}

func (r *gormRepository) FailTrial(ctx context.Context, clientID string) (models.TransitionResult, error) {
	res, _, err := models.CompareAndSet(r.db.WithContext(ctx), &models.Client{}, clientID, "trial_payment_status",
		models.PaymentTransitions, models.PaymentStatusFailed, nil)
	return res, entityErr(err)
}

func (r *gormRepository) FailContinuation(ctx context.Context, applicationID string) (models.TransitionResult, error) {
	res, _, err := models.CompareAndSet(r.db.WithContext(ctx), &models.ContinuationApplication{}, applicationID, "payment_status",
		models.PaymentTransitions, models.PaymentStatusFailed, nil)
	return res, entityErr(err)
}

func (r *gormRepository) UpsertTrialLedger(ctx context.Context, row *models.TrialPaymentTransaction) error {
	return ignoreDuplicate(r.db.WithContext(ctx).Clauses(ledgerConflict(&row.LedgerEntry, "trial_payment_transactions")).Create(row).Error)
}

func (r *gormRepository) UpsertContinuationLedger(ctx context.Context, row *models.PaymentTransaction) error {
	return ignoreDuplicate(r.db.WithContext(ctx).Clauses(ledgerConflict(&row.LedgerEntry, "payment_transactions")).Create(row).Error)
}

// MarkLedgerSucceeded settles the ledger row of a payment intent in either
// ledger and returns the number of rows touched.
func (r *gormRepository) MarkLedgerSucceeded(ctx context.Context, paymentIntentID, chargeID string, paidAt time.Time) (int64, error) {
	updates := map[string]any{
		"status":  string(models.PaymentStatusSucceeded),
		"paid_at": paidAt,
	}
	if chargeID != "" {
		updates["stripe_charge_id"] = chargeID
	}

	var total int64
	for _, model := range []any{&models.PaymentTransaction{}, &models.TrialPaymentTransaction{}} {
		tx := r.db.WithContext(ctx).Model(model).Where("stripe_payment_intent_id = ?", paymentIntentID).Updates(updates)
		if tx.Error != nil {
			return total, tx.Error
		}
		total += tx.RowsAffected
	}
	return total, nil
}

// ledgerConflict upserts on the payment intent id. Rows without an intent
// fall back to the checkout session id and are never rewritten. A failure
// never overwrites a settled row.
func ledgerConflict(entry *models.LedgerEntry, table string) clause.OnConflict {
	if entry.StripePaymentIntentID == nil || *entry.StripePaymentIntentID == "" {
		return clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_checkout_session_id"}},
			DoNothing: true,
		}
	}

	columns := []string{"status", "updated_at"}
	if entry.Status == models.PaymentStatusSucceeded {
		columns = append(columns, "paid_at", "amount", "currency")
		if entry.StripeCheckoutSessionID != nil {
			columns = append(columns, "stripe_checkout_session_id")
		}
	} else {
		columns = append(columns, "failure_code", "failure_message")
	}
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_payment_intent_id"}},
		Where:     clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: table + ".status <> ?", Vars: []any{string(models.PaymentStatusSucceeded)}}}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

// ignoreDuplicate treats a unique violation as an already recorded row.
func ignoreDuplicate(err error) error {
	if err == nil || isUniqueViolation(err) {
		return nil
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func entityErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEntityNotFound
	}
	return err
}
