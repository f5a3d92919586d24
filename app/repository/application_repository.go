package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"gorm.io/gorm"
)

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new continuation application repository instance
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *models.ContinuationApplication) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (*models.ContinuationApplication, error) {
	var app models.ContinuationApplication
	if err := r.db.WithContext(ctx).Preload("Client").First(&app, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &app, nil
}

func (r *applicationRepository) SetCheckoutSession(ctx context.Context, id, checkoutSessionID string) error {
	return r.db.WithContext(ctx).Model(&models.ContinuationApplication{}).Where("id = ?", id).
		Update("stripe_checkout_session_id", checkoutSessionID).Error
}

// Decide applies an admin decision. approved_at is only written on approval.
func (r *applicationRepository) Decide(ctx context.Context, id string, to models.ApplicationStatus, at time.Time) (models.TransitionResult, models.ApplicationStatus, error) {
	var extra map[string]any
	if to == models.ApplicationStatusApproved {
		extra = map[string]any{"approved_at": at}
	}
	res, cur, err := models.CompareAndSet(r.db.WithContext(ctx), &models.ContinuationApplication{}, id, "status",
		models.ApplicationTransitions, to, extra)
	return res, cur, notFound(err)
}

// MarkPaid settles the payment of an application paid outside Stripe.
func (r *applicationRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (models.TransitionResult, error) {
	res, _, err := models.CompareAndSet(r.db.WithContext(ctx), &models.ContinuationApplication{}, id, "payment_status",
		models.PaymentTransitions, models.PaymentStatusSucceeded, map[string]any{"paid_at": paidAt})
	return res, notFound(err)
}

func (r *applicationRepository) List(ctx context.Context, page Page, status string) ([]models.ContinuationApplication, error) {
	var apps []models.ContinuationApplication
	q := r.db.WithContext(ctx).Preload("Client").Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := paginate(q, page).Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) Count(ctx context.Context, status string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.ContinuationApplication{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&count).Error
	return count, err
}
