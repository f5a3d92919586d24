package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// EmailHistory is one delivery attempt over one transport. Rows are never
// updated or deleted.
type EmailHistory struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Recipient    string         `gorm:"type:varchar(255);not null;index" json:"recipient"`
	Subject      string         `gorm:"type:varchar(255);not null" json:"subject"`
	Category     string         `gorm:"type:varchar(40);not null;index" json:"category"`
	Transport    string         `gorm:"type:varchar(20);not null" json:"transport"`
	Status       DeliveryStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	SessionID    *string        `gorm:"type:varchar(36);index" json:"session_id,omitempty"`
	ClientID     *string        `gorm:"type:varchar(36);index" json:"client_id,omitempty"`
	RelatedID    *string        `gorm:"type:varchar(36);index" json:"related_id,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (EmailHistory) TableName() string {
	return "email_history"
}

func (e *EmailHistory) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
