package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContinuationApplication is a request by an existing client to join the
// paid continuation program after the trial.
type ContinuationApplication struct {
	ID                      string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	ClientID                string            `gorm:"type:varchar(36);not null;index" json:"client_id"`
	Client                  *Client           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Plan                    string            `gorm:"type:varchar(50);not null;default:'standard'" json:"plan"`
	Message                 string            `gorm:"type:text" json:"message,omitempty"`
	PaymentMethod           PaymentMethod     `gorm:"type:varchar(20);not null;default:'card'" json:"payment_method"`
	Status                  ApplicationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus           PaymentStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	Amount                  int64             `gorm:"not null;default:0" json:"amount"`
	Currency                string            `gorm:"type:varchar(3);not null;default:'jpy'" json:"currency"`
	StripeCheckoutSessionID *string           `gorm:"type:varchar(255)" json:"stripe_checkout_session_id,omitempty"`
	StripePaymentIntentID   *string           `gorm:"type:varchar(255);index" json:"stripe_payment_intent_id,omitempty"`
	PaidAt                  *time.Time        `json:"paid_at,omitempty"`
	ApprovedAt              *time.Time        `json:"approved_at,omitempty"`
	CreatedAt               time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt               time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *ContinuationApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = ApplicationStatusPending
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentStatusPending
	}
	if a.PaymentMethod == "" {
		a.PaymentMethod = PaymentMethodCard
	}
	return nil
}
