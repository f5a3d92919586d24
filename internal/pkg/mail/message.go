package mail

import (
	"context"
	"errors"
	"strings"

	"github.com/ManuelReschke/CoachDesk/app/models"
)

// Category classifies a message for the delivery audit trail.
type Category string

const (
	CategoryApplication          Category = "application"
	CategoryBooking              Category = "booking"
	CategorySessionUpdate        Category = "session_update"
	CategoryNextSessionPromotion Category = "next_session_promotion"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryApplication, CategoryBooking, CategorySessionUpdate, CategoryNextSessionPromotion:
		return true
	}
	return false
}

var ErrNoRecipient = errors.New("recipient is required")

// Message is one logical email.
type Message struct {
	To        string   `json:"to"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Category  Category `json:"category"`
	SessionID string   `json:"session_id,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	RelatedID string   `json:"related_id,omitempty"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || !strings.Contains(m.To, "@") {
		return ErrNoRecipient
	}
	return nil
}

// Outcome is the result of a logical send after any fallback.
type Outcome struct {
	Success   bool   `json:"success"`
	Transport string `json:"transport"`
	Error     string `json:"error,omitempty"`
}

// Transport delivers a message over one channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Recorder persists delivery attempts.
type Recorder interface {
	Create(ctx context.Context, record *models.EmailHistory) error
}
