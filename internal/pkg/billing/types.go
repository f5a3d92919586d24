package billing

import (
	"strings"
	"time"
)

// Payment kinds carried in checkout and payment intent metadata.
const (
	KindTrial        = "trial"
	KindContinuation = "continuation"

	MetaType          = "type"
	MetaClientID      = "client_id"
	MetaApplicationID = "continuation_application_id"
)

// Event types the reconciler acts on.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// Metadata is the correlation data attached to a checkout session and its
// payment intent.
type Metadata struct {
	Kind          string
	ClientID      string
	ApplicationID string
}

func ParseMetadata(m map[string]string) Metadata {
	return Metadata{
		Kind:          strings.ToLower(strings.TrimSpace(m[MetaType])),
		ClientID:      strings.TrimSpace(m[MetaClientID]),
		ApplicationID: strings.TrimSpace(m[MetaApplicationID]),
	}
}

// ResolveKind returns the payment kind. An untyped payload with an
// application id is a continuation payment; any other untyped payload
// resolves to "" and must not touch an entity.
func (m Metadata) ResolveKind() string {
	switch {
	case m.Kind == KindTrial || m.Kind == KindContinuation:
		return m.Kind
	case m.Kind == "" && m.ApplicationID != "":
		return KindContinuation
	}
	return ""
}

func (m Metadata) Map() map[string]string {
	out := map[string]string{MetaType: m.Kind}
	if m.ClientID != "" {
		out[MetaClientID] = m.ClientID
	}
	if m.ApplicationID != "" {
		out[MetaApplicationID] = m.ApplicationID
	}
	return out
}

// Checkout is the provider-neutral view of a checkout session.
type Checkout struct {
	ID              string
	URL             string
	PaymentIntentID string
	CustomerID      string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	Metadata        Metadata
}

// Paid reports whether the provider considers the checkout paid.
func (c *Checkout) Paid() bool {
	return c.PaymentStatus == "paid" || c.PaymentStatus == "no_payment_required"
}

// Intent is the provider-neutral view of a payment intent.
type Intent struct {
	ID             string
	ChargeID       string
	CustomerID     string
	Amount         int64
	Currency       string
	FailureCode    string
	FailureMessage string
	Metadata       Metadata
}

// PaymentEvent is a verified webhook event.
type PaymentEvent struct {
	ID       string
	Type     string
	Created  time.Time
	Checkout *Checkout
	Intent   *Intent
	Payload  []byte
}

// CheckoutRequest describes a one-off payment page.
type CheckoutRequest struct {
	CustomerID  string
	Email       string
	ProductName string
	Amount      int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    Metadata
}

// WebhookResult tells the HTTP layer how to acknowledge a delivery.
type WebhookResult struct {
	StatusCode int
	EventID    string
	EventType  string
	Outcome    string
	Duplicate  bool
	Error      string
}

// Reconciliation outcomes, also used as metric labels.
const (
	OutcomeApplied          = "applied"
	OutcomeNoop             = "noop"
	OutcomeRejected         = "rejected"
	OutcomeIgnored          = "ignored"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeError            = "error"
)
