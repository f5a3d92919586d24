package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/mail"
)

// Data is the template context shared by all catalog entries.
type Data struct {
	ClientName      string
	ClientEmail     string
	Goals           string
	PaymentMethod   string
	RequiresPayment bool
	Amount          string
	Plan            string
	PaymentDeadline string
	Bank            config.BankConfig
	SessionAt       string
	SessionType     string
	DurationMinutes int
	MeetingURL      string
	Summary         string
	BookingURL      string
	ContinueURL     string
}

// Dispatcher hands an ordered group of messages to the delivery layer
// without waiting for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string, msgs ...mail.Message) error
}

type Options struct {
	AdminEmail string
	BaseURL    string
	Bank       config.BankConfig
	Location   *time.Location
	Now        func() time.Time
}

// Notifier turns business events into client and admin messages.
type Notifier struct {
	catalog    *Catalog
	dispatcher Dispatcher
	opts       Options
}

func NewNotifier(catalog *Catalog, dispatcher Dispatcher, opts Options) *Notifier {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Notifier{catalog: catalog, dispatcher: dispatcher, opts: opts}
}

func (n *Notifier) baseData(client *models.Client) Data {
	return Data{
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		Goals:         client.Goals,
		PaymentMethod: string(client.TrialPaymentMethod),
		Bank:          n.opts.Bank,
		BookingURL:    n.opts.BaseURL + "/booking",
		ContinueURL:   n.opts.BaseURL + "/apply/continue",
	}
}

func (n *Notifier) formatTime(t time.Time) string {
	return t.In(n.opts.Location).Format("2006年1月2日 15:04")
}

// ApplicationReceived confirms a trial application to the client and alerts the admin.
func (n *Notifier) ApplicationReceived(ctx context.Context, client *models.Client, requiresPayment bool) error {
	data := n.baseData(client)
	data.RequiresPayment = requiresPayment
	return n.pair(ctx, "application_received", client, data, "", "")
}

// BankTransferApplicationReceived confirms a bank transfer trial application.
// The acknowledgement, the account details and the admin copy go out as one
// ordered group so the pause between related messages holds in queue mode.
func (n *Notifier) BankTransferApplicationReceived(ctx context.Context, client *models.Client, amount int64) error {
	data := n.baseData(client)
	data.Amount = FormatYen(amount)
	data.PaymentDeadline = n.formatTime(n.opts.Now().Add(n.opts.Bank.PaymentWindow))

	msgs, err := n.pairMessages("application_received", client, data, "", "")
	if err != nil {
		return err
	}
	instructions, err := n.render("bank_transfer_instructions", client.Email, data, client.ID, "", "")
	if err != nil {
		return err
	}
	group := []mail.Message{msgs[0], instructions}
	group = append(group, msgs[1:]...)
	return n.dispatcher.Dispatch(ctx, "application_received", group...)
}

func (n *Notifier) TrialPaymentConfirmed(ctx context.Context, client *models.Client, amount int64) error {
	data := n.baseData(client)
	data.Amount = FormatYen(amount)
	return n.pair(ctx, "trial_payment_confirmed", client, data, "", "")
}

func (n *Notifier) ContinuationApplicationReceived(ctx context.Context, client *models.Client, app *models.ContinuationApplication) error {
	data := n.baseData(client)
	data.Plan = app.Plan
	data.Amount = FormatYen(app.Amount)
	data.PaymentMethod = string(app.PaymentMethod)
	data.RequiresPayment = app.PaymentMethod == models.PaymentMethodCard
	return n.pair(ctx, "continuation_application_received", client, data, "", app.ID)
}

func (n *Notifier) ContinuationPaymentConfirmed(ctx context.Context, client *models.Client, app *models.ContinuationApplication) error {
	data := n.baseData(client)
	data.Plan = app.Plan
	data.Amount = FormatYen(app.Amount)
	return n.pair(ctx, "continuation_payment_confirmed", client, data, "", app.ID)
}

func (n *Notifier) BookingConfirmed(ctx context.Context, client *models.Client, session *models.Session) error {
	data := n.baseData(client)
	data.SessionAt = n.formatTime(session.ScheduledAt)
	data.SessionType = string(session.Type)
	data.DurationMinutes = session.DurationMinutes
	data.MeetingURL = session.MeetingURL
	return n.pair(ctx, "booking_confirmed", client, data, session.ID, "")
}

// SessionCompleted thanks the client and, after a trial, promotes the
// continuation program.
func (n *Notifier) SessionCompleted(ctx context.Context, client *models.Client, session *models.Session, promote bool) error {
	data := n.baseData(client)
	data.SessionAt = n.formatTime(session.ScheduledAt)
	data.Summary = session.Summary

	msgs := make([]mail.Message, 0, 2)
	msg, err := n.render("session_completed", client.Email, data, client.ID, session.ID, "")
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)
	if promote {
		promo, err := n.render("next_session_promotion", client.Email, data, client.ID, session.ID, "")
		if err != nil {
			return err
		}
		msgs = append(msgs, promo)
	}
	return n.dispatcher.Dispatch(ctx, "session_completed", msgs...)
}

// pair sends the client copy of name followed by the admin copy (name_admin) when one exists.
func (n *Notifier) pair(ctx context.Context, name string, client *models.Client, data Data, sessionID, relatedID string) error {
	msgs, err := n.pairMessages(name, client, data, sessionID, relatedID)
	if err != nil {
		return err
	}
	return n.dispatcher.Dispatch(ctx, name, msgs...)
}

func (n *Notifier) pairMessages(name string, client *models.Client, data Data, sessionID, relatedID string) ([]mail.Message, error) {
	msgs := make([]mail.Message, 0, 3)
	msg, err := n.render(name, client.Email, data, client.ID, sessionID, relatedID)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, msg)

	adminName := name + "_admin"
	if n.opts.AdminEmail != "" && n.catalog.Has(adminName) {
		admin, err := n.render(adminName, n.opts.AdminEmail, data, client.ID, sessionID, relatedID)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, admin)
	}
	return msgs, nil
}

func (n *Notifier) render(name, to string, data Data, clientID, sessionID, relatedID string) (mail.Message, error) {
	msg, err := n.catalog.Render(name, to, data)
	if err != nil {
		log.Errorf("[Notify] Template %s failed: %v", name, err)
		return mail.Message{}, err
	}
	msg.ClientID = clientID
	msg.SessionID = sessionID
	msg.RelatedID = relatedID
	return msg, nil
}

// FormatYen renders an amount in yen with thousands separators.
func FormatYen(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := false
	if amount < 0 {
		neg = true
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return fmt.Sprintf("-¥%s", out)
	}
	return fmt.Sprintf("¥%s", out)
}
