package models

import "time"

// StripeWebhookEvent stores verified webhook payloads keyed by provider event
// id so redeliveries can be recognised.
type StripeWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EventID         string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Settled reports whether an earlier delivery was processed without error.
func (e *StripeWebhookEvent) Settled() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
