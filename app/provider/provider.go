package provider

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
)

var ErrInvalidEmail = errors.New("rendered email is missing required fields")

// EmailProvider delivers a rendered email through a transactional-email service.
type EmailProvider interface {
	Send(ctx context.Context, email entity.RenderedEmail) error
}

func validate(email entity.RenderedEmail) error {
	if email.To == "" || email.From == "" || email.Subject == "" {
		return ErrInvalidEmail
	}
	if email.HTML == "" && email.Text == "" {
		return ErrInvalidEmail
	}
	return nil
}
