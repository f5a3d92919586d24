package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionType string

const (
	SessionTypeTrial   SessionType = "trial"
	SessionTypeRegular SessionType = "regular"
)

type Session struct {
	ID              string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	ClientID        string        `gorm:"type:varchar(36);not null;index" json:"client_id"`
	Client          *Client       `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Type            SessionType   `gorm:"type:varchar(20);not null;default:'trial'" json:"type"`
	Status          SessionStatus `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	ScheduledAt     time.Time     `gorm:"not null;index" json:"scheduled_at"`
	DurationMinutes int           `gorm:"not null;default:60" json:"duration_minutes"`
	MeetingURL      string        `gorm:"type:varchar(255)" json:"meeting_url,omitempty"`
	Notes           string        `gorm:"type:text" json:"notes,omitempty"`
	Summary         string        `gorm:"type:text" json:"summary,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = SessionStatusScheduled
	}
	if s.Type == "" {
		s.Type = SessionTypeTrial
	}
	if s.DurationMinutes == 0 {
		s.DurationMinutes = 60
	}
	return nil
}

// EndsAt is the scheduled end of the session.
func (s *Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}
