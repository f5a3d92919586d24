package repository

import (
	"context"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new ledger repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreatePayment(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *paymentRepository) CreateTrialPayment(ctx context.Context, tx *models.TrialPaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *paymentRepository) ListPayments(ctx context.Context, page Page) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	err := paginate(r.db.WithContext(ctx).Order("created_at DESC"), page).Find(&rows).Error
	return rows, err
}

func (r *paymentRepository) ListTrialPayments(ctx context.Context, page Page) ([]models.TrialPaymentTransaction, error) {
	var rows []models.TrialPaymentTransaction
	err := paginate(r.db.WithContext(ctx).Order("created_at DESC"), page).Find(&rows).Error
	return rows, err
}

// CountPayments returns the number of continuation and trial ledger rows.
func (r *paymentRepository) CountPayments(ctx context.Context) (int64, int64, error) {
	var continuation, trial int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Count(&continuation).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.TrialPaymentTransaction{}).Count(&trial).Error; err != nil {
		return 0, 0, err
	}
	return continuation, trial, nil
}
