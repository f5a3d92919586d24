package repository

import (
	"context"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"gorm.io/gorm"
)

type emailHistoryRepository struct {
	db *gorm.DB
}

// NewEmailHistoryRepository creates a new delivery record repository instance
func NewEmailHistoryRepository(db *gorm.DB) EmailHistoryRepository {
	return &emailHistoryRepository{db: db}
}

func (r *emailHistoryRepository) Create(ctx context.Context, record *models.EmailHistory) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *emailHistoryRepository) List(ctx context.Context, page Page, filter EmailHistoryFilter) ([]models.EmailHistory, error) {
	var records []models.EmailHistory
	q := filter.apply(r.db.WithContext(ctx)).Order("created_at DESC")
	err := paginate(q, page).Find(&records).Error
	return records, err
}

func (r *emailHistoryRepository) Count(ctx context.Context, filter EmailHistoryFilter) (int64, error) {
	var count int64
	err := filter.apply(r.db.WithContext(ctx).Model(&models.EmailHistory{})).Count(&count).Error
	return count, err
}

func (f EmailHistoryFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}
