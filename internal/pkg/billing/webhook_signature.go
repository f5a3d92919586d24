package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventVerifier authenticates a raw webhook delivery and decodes it.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (*PaymentEvent, error)
}

// StripeVerifier checks the Stripe-Signature header with the endpoint secret.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(webhookSecret string) *StripeVerifier {
	return &StripeVerifier{secret: strings.TrimSpace(webhookSecret), tolerance: webhook.DefaultTolerance}
}

func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (*PaymentEvent, error) {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || v.secret == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(event, payload)
}

func decodeEvent(event stripe.Event, payload []byte) (*PaymentEvent, error) {
	out := &PaymentEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Payload: payload,
	}
	if event.Data == nil {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Checkout = checkoutFromStripe(&cs)
	case strings.HasPrefix(out.Type, "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Intent = intentFromStripe(&pi)
	}
	return out, nil
}

func checkoutFromStripe(cs *stripe.CheckoutSession) *Checkout {
	c := &Checkout{
		ID:            cs.ID,
		URL:           cs.URL,
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
		Metadata:      ParseMetadata(cs.Metadata),
	}
	if cs.PaymentIntent != nil {
		c.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.Customer != nil {
		c.CustomerID = cs.Customer.ID
	}
	return c
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:       pi.ID,
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Metadata: ParseMetadata(pi.Metadata),
	}
	if pi.LatestCharge != nil {
		in.ChargeID = pi.LatestCharge.ID
	}
	if pi.Customer != nil {
		in.CustomerID = pi.Customer.ID
	}
	if pi.LastPaymentError != nil {
		in.FailureCode = string(pi.LastPaymentError.Code)
		in.FailureMessage = pi.LastPaymentError.Msg
	}
	return in
}
