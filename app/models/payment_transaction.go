package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentProviderStripe       = "stripe"
	PaymentProviderBankTransfer = "bank_transfer"
)

// LedgerEntry holds the columns shared by both payment ledgers. Provider ids
// are unique so a replayed provider event cannot add a second row.
type LedgerEntry struct {
	ClientID                *string       `gorm:"type:varchar(36);index" json:"client_id,omitempty"`
	Provider                string        `gorm:"type:varchar(20);not null;default:'stripe'" json:"provider"`
	StripeCheckoutSessionID *string       `gorm:"type:varchar(255);uniqueIndex" json:"stripe_checkout_session_id,omitempty"`
	StripePaymentIntentID   *string       `gorm:"type:varchar(255);uniqueIndex" json:"stripe_payment_intent_id,omitempty"`
	StripeChargeID          *string       `gorm:"type:varchar(255)" json:"stripe_charge_id,omitempty"`
	StripeCustomerID        *string       `gorm:"type:varchar(255)" json:"stripe_customer_id,omitempty"`
	Amount                  int64         `gorm:"not null;default:0" json:"amount"`
	Currency                string        `gorm:"type:varchar(3);not null;default:'jpy'" json:"currency"`
	Status                  PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	FailureCode             *string       `gorm:"type:varchar(100)" json:"failure_code,omitempty"`
	FailureMessage          *string       `gorm:"type:text" json:"failure_message,omitempty"`
	PaidAt                  *time.Time    `json:"paid_at,omitempty"`
}

// PaymentTransaction is a ledger row for a continuation program payment.
type PaymentTransaction struct {
	ID                        string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	ContinuationApplicationID *string     `gorm:"type:varchar(36);index" json:"continuation_application_id,omitempty"`
	LedgerEntry               LedgerEntry `gorm:"embedded" json:"ledger"`
	CreatedAt                 time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt                 time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// TrialPaymentTransaction is a ledger row for a trial session payment.
type TrialPaymentTransaction struct {
	ID          string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	LedgerEntry LedgerEntry `gorm:"embedded" json:"ledger"`
	CreatedAt   time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *TrialPaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
