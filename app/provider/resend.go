package provider

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
)

type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider builds a provider that sends email via the Resend API.
func NewResendProvider(client *resend.Client) *ResendProvider {
	return &ResendProvider{client: client}
}

// Send sends an html + text email via Resend.
func (p *ResendProvider) Send(ctx context.Context, email entity.RenderedEmail) error {
	if err := validate(email); err != nil {
		return err
	}

	_, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return fmt.Errorf("resend send email: %w", err)
	}

	return nil
}
