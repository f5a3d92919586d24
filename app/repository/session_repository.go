package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository instance
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Preload("Client").First(&session, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *sessionRepository) ListByClient(ctx context.Context, clientID string) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Order("scheduled_at ASC").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) Complete(ctx context.Context, id, summary string, at time.Time) (models.TransitionResult, error) {
	res, _, err := models.CompareAndSet(r.db.WithContext(ctx), &models.Session{}, id, "status",
		models.SessionTransitions, models.SessionStatusCompleted, map[string]any{"completed_at": at, "summary": summary})
	return res, notFound(err)
}

func (r *sessionRepository) Cancel(ctx context.Context, id string) (models.TransitionResult, error) {
	res, _, err := models.CompareAndSet(r.db.WithContext(ctx), &models.Session{}, id, "status",
		models.SessionTransitions, models.SessionStatusCancelled, nil)
	return res, notFound(err)
}

func (r *sessionRepository) List(ctx context.Context, page Page) ([]models.Session, error) {
	var sessions []models.Session
	err := paginate(r.db.WithContext(ctx).Preload("Client").Order("scheduled_at DESC"), page).Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Session{}).Count(&count).Error
	return count, err
}
