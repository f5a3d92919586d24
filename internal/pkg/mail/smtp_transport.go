package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

const TransportSMTP = "smtp"

// SMTPConfig holds the relay account. Gmail needs an app password.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPTransport sends through an authenticated SMTP relay. Carrier recipients
// get adapted content on this path.
type SMTPTransport struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPTransport{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (t *SMTPTransport) Name() string { return TransportSMTP }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if IsCarrier(msg.To) {
		msg = AdaptForCarrier(msg)
	}

	e := email.NewEmail()
	e.From = t.cfg.From
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%s", t.cfg.Host, t.cfg.Port)
	var auth smtp.Auth
	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}
	if err := t.send(e, addr, auth); err != nil {
		return fmt.Errorf("smtp send via %s: %w", addr, err)
	}
	return nil
}
