package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"gorm.io/gorm"
)

// clientRepository implements the ClientRepository interface
type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new client repository instance
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	client.Email = strings.ToLower(strings.TrimSpace(client.Email))
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &client, nil
}

func (r *clientRepository) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&client).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &client, nil
}

// Update saves profile fields. Status columns only change through transitions.
func (r *clientRepository) Update(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Model(client).
		Select("name", "phone", "goals", "notes", "trial_payment_method").
		Updates(client).Error
}

// SetStripeCustomerID fills the customer id once and never overwrites it.
func (r *clientRepository) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	return r.db.WithContext(ctx).Model(&models.Client{}).
		Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", id).
		Update("stripe_customer_id", customerID).Error
}

func (r *clientRepository) TransitionStatus(ctx context.Context, id string, to models.ClientStatus) (models.TransitionResult, models.ClientStatus, error) {
	res, cur, err := models.CompareAndSet(r.db.WithContext(ctx), &models.Client{}, id, "status", models.ClientTransitions, to, nil)
	return res, cur, notFound(err)
}

// MarkTrialPaid records a settled trial payment and advances an applied
// client to trial_booked.
func (r *clientRepository) MarkTrialPaid(ctx context.Context, id string, paidAt time.Time) (models.TransitionResult, error) {
	var res models.TransitionResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, _, err = models.CompareAndSet(tx, &models.Client{}, id, "trial_payment_status",
			models.PaymentTransitions, models.PaymentStatusSucceeded, map[string]any{"trial_paid_at": paidAt})
		if err != nil || res != models.TransitionApplied {
			return err
		}
		_, _, err = models.CompareAndSet(tx, &models.Client{}, id, "status",
			models.ClientTransitions, models.ClientStatusTrialBooked, nil)
		return err
	})
	return res, notFound(err)
}

func (r *clientRepository) List(ctx context.Context, page Page, status string) ([]models.Client, error) {
	var clients []models.Client
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := paginate(q, page).Find(&clients).Error
	return clients, err
}

func (r *clientRepository) Count(ctx context.Context, status string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Client{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&count).Error
	return count, err
}
