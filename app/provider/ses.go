package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
)

const charsetUTF8 = "UTF-8"

type SESProvider struct {
	client *sesv2.Client
}

// NewSESProvider builds a provider that sends email via AWS SES.
func NewSESProvider(cfg aws.Config, optFns ...func(*sesv2.Options)) *SESProvider {
	return &SESProvider{
		client: sesv2.NewFromConfig(cfg, optFns...),
	}
}

// Send sends a simple html + text email via SES.
func (p *SESProvider) Send(ctx context.Context, email entity.RenderedEmail) error {
	if err := validate(email); err != nil {
		return err
	}

	body := &types.Body{}
	if email.HTML != "" {
		body.Html = &types.Content{Data: aws.String(email.HTML), Charset: aws.String(charsetUTF8)}
	}
	if email.Text != "" {
		body.Text = &types.Content{Data: aws.String(email.Text), Charset: aws.String(charsetUTF8)}
	}

	_, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(email.From),
		Destination: &types.Destination{
			ToAddresses: []string{email.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String(charsetUTF8)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	return nil
}
