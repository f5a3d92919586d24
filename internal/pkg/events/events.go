package events

import (
	"context"
	"time"
)

// PaymentSucceeded is published once per settled payment.
type PaymentSucceeded struct {
	EventID           string    `json:"event_id"`
	Kind              string    `json:"kind"`
	ClientID          string    `json:"client_id"`
	ApplicationID     string    `json:"continuation_application_id,omitempty"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	CheckoutSessionID string    `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string    `json:"payment_intent_id,omitempty"`
	PaidAt            time.Time `json:"paid_at"`
}

// NoopPublisher drops every event. Used when Kafka is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishPaymentSucceeded(context.Context, PaymentSucceeded) error { return nil }

func (NoopPublisher) Close() {}
