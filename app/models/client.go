package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Client is a coaching client from first application onwards.
type Client struct {
	ID                 string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name               string        `gorm:"type:varchar(100);not null" json:"name"`
	Email              string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Phone              string        `gorm:"type:varchar(30)" json:"phone,omitempty"`
	Goals              string        `gorm:"type:text" json:"goals,omitempty"`
	Notes              string        `gorm:"type:text" json:"notes,omitempty"`
	Status             ClientStatus  `gorm:"type:varchar(20);not null;default:'applied';index" json:"status"`
	TrialPaymentMethod PaymentMethod `gorm:"type:varchar(20);not null;default:'card'" json:"trial_payment_method"`
	TrialPaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"trial_payment_status"`
	TrialPaidAt        *time.Time    `json:"trial_paid_at,omitempty"`
	StripeCustomerID   *string       `gorm:"type:varchar(100)" json:"stripe_customer_id,omitempty"`
	CreatedAt          time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = ClientStatusApplied
	}
	if c.TrialPaymentStatus == "" {
		c.TrialPaymentStatus = PaymentStatusPending
	}
	if c.TrialPaymentMethod == "" {
		c.TrialPaymentMethod = PaymentMethodCard
	}
	return nil
}

// TrialPaid reports whether the trial session has been paid for.
func (c *Client) TrialPaid() bool {
	return c.TrialPaymentStatus == PaymentStatusSucceeded
}
