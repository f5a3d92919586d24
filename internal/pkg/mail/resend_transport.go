package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

const TransportResend = "resend"

type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendTransport sends through the Resend transactional API.
type ResendTransport struct {
	from   string
	emails resendEmails
}

func NewResendTransport(apiKey, from string) *ResendTransport {
	client := resend.NewClient(apiKey)
	return &ResendTransport{from: from, emails: client.Emails}
}

func (t *ResendTransport) Name() string { return TransportResend }

func (t *ResendTransport) Send(ctx context.Context, msg Message) error {
	resp, err := t.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return errors.New("resend send: empty response id")
	}
	return nil
}
