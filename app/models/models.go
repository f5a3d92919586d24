package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Client{},
		&Session{},
		&ContinuationApplication{},
		&EmailHistory{},
		&PaymentTransaction{},
		&TrialPaymentTransaction{},
		&StripeWebhookEvent{},
	}
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
