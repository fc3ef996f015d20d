package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
	"github.com/vibast-solutions/ms-go-mailinglist/app/provider"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
	"golang.org/x/sync/errgroup"
)

// Renderer builds the email for a queued message.
type Renderer interface {
	Render(msg queue.Message) (entity.RenderedEmail, error)
}

type MailOption func(*MailService)

// WithMailRecorder records Sent and Failed outcomes.
func WithMailRecorder(r queue.DeliveryRecorder) MailOption {
	return func(s *MailService) {
		s.recorder = r
	}
}

// WithSendConcurrency bounds the number of concurrent sends per batch.
func WithSendConcurrency(n int) MailOption {
	return func(s *MailService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithSendTimeout bounds a single provider call.
func WithSendTimeout(d time.Duration) MailOption {
	return func(s *MailService) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithMailLogger sets the logger used by the mail service.
func WithMailLogger(l logrus.FieldLogger) MailOption {
	return func(s *MailService) {
		if l != nil {
			s.log = l
		}
	}
}

// MailService renders and sends dequeued messages.
type MailService struct {
	renderer    Renderer
	provider    provider.EmailProvider
	recorder    queue.DeliveryRecorder
	concurrency int
	sendTimeout time.Duration
	log         logrus.FieldLogger
}

// NewMailService builds the mail service with dependencies.
func NewMailService(renderer Renderer, provider provider.EmailProvider, opts ...MailOption) *MailService {
	s := &MailService{
		renderer:    renderer,
		provider:    provider,
		concurrency: 4,
		sendTimeout: 30 * time.Second,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleBatch sends every delivery in the batch. A failure only affects its
// own Result.
func (s *MailService) HandleBatch(ctx context.Context, batch []queue.Delivery) []queue.Result {
	results := make([]queue.Result, len(batch))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, d := range batch {
		g.Go(func() error {
			results[i] = queue.Result{ID: d.ID, Err: s.deliver(ctx, d)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *MailService) deliver(ctx context.Context, d queue.Delivery) error {
	ctx = WithMessageID(ctx, d.ID)
	log := contextLogger(ctx, s.log).WithFields(logrus.Fields{
		"kind":      d.Message.Kind(),
		"recipient": d.Message.Recipient(),
		"attempt":   d.Attempts,
	})

	err := s.send(ctx, d)
	if err != nil {
		log.WithError(err).Error("Failed to send email")
		s.record(ctx, log, d, entity.DeliveryStatusFailed, err)
		return err
	}

	log.Info("Email sent")
	s.record(ctx, log, d, entity.DeliveryStatusSent, nil)
	return nil
}

func (s *MailService) send(ctx context.Context, d queue.Delivery) error {
	email, err := s.renderer.Render(d.Message)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.provider.Send(sendCtx, email); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (s *MailService) record(ctx context.Context, log logrus.FieldLogger, d queue.Delivery, status int16, cause error) {
	if s.recorder == nil {
		return
	}
	rec := entity.DeliveryRecord{
		MessageID: d.ID,
		Kind:      string(d.Message.Kind()),
		Recipient: d.Message.Recipient(),
		Status:    status,
		Attempts:  d.Attempts,
	}
	if cause != nil {
		rec.LastError = cause.Error()
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		log.WithError(err).Warn("Failed to record delivery outcome")
	}
}
