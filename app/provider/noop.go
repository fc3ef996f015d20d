package provider

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
)

// NoopProvider is a stubbed provider that logs emails instead of sending them.
type NoopProvider struct {
	log logrus.FieldLogger
}

// NewNoopProvider constructs a no-op email provider.
func NewNoopProvider(log logrus.FieldLogger) *NoopProvider {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &NoopProvider{log: log}
}

// Send logs the email and returns nil without sending.
func (p *NoopProvider) Send(_ context.Context, email entity.RenderedEmail) error {
	p.log.WithFields(logrus.Fields{
		"to":      email.To,
		"from":    email.From,
		"subject": email.Subject,
	}).Info("Noop provider skipped sending email")
	return nil
}
