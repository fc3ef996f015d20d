package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
	"github.com/vibast-solutions/ms-go-mailinglist/app/lock"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
	"golang.org/x/sync/errgroup"
)

const fanoutLockPrefix = "mailinglist:fanout:"

var ErrTickInProgress = errors.New("fan-out tick already in progress")

// SubscriberStore lists the subscribers that receive the daily topic.
type SubscriberStore interface {
	ListConfirmed(ctx context.Context) ([]entity.Subscriber, error)
}

// TopicFetcher returns the topic of the day.
type TopicFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Publisher enqueues one message.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) (string, error)
}

// TickLocker guards a tick against concurrent scheduler replicas. Forget
// keeps the key in place until its TTL expires.
type TickLocker interface {
	lock.Locker
	Forget(key string)
}

// PublishError is the failure to enqueue the daily topic for one subscriber.
type PublishError struct {
	Email string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Email, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

type PublishFailure struct {
	Email string
	Err   error
}

// FanoutReport summarizes one tick.
type FanoutReport struct {
	TickID      string
	Subscribers int
	Published   int
	Failures    []PublishFailure
}

type FanoutOption func(*FanoutService)

// WithTickLocker enables the per-day guard lock.
func WithTickLocker(l TickLocker, ttl time.Duration) FanoutOption {
	return func(s *FanoutService) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithFanoutConcurrency bounds the number of concurrent publishes.
func WithFanoutConcurrency(n int) FanoutOption {
	return func(s *FanoutService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithFanoutClock overrides the clock used for the lock key.
func WithFanoutClock(now func() time.Time) FanoutOption {
	return func(s *FanoutService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFanoutLogger sets the logger used by the fan-out.
func WithFanoutLogger(l logrus.FieldLogger) FanoutOption {
	return func(s *FanoutService) {
		if l != nil {
			s.log = l
		}
	}
}

// FanoutService publishes the topic of the day to every confirmed subscriber.
type FanoutService struct {
	store       SubscriberStore
	fetcher     TopicFetcher
	publisher   Publisher
	locker      TickLocker
	lockTTL     time.Duration
	concurrency int
	now         func() time.Time
	log         logrus.FieldLogger
}

// NewFanoutService builds the fan-out service with dependencies.
func NewFanoutService(store SubscriberStore, fetcher TopicFetcher, publisher Publisher, opts ...FanoutOption) *FanoutService {
	s := &FanoutService{
		store:       store,
		fetcher:     fetcher,
		publisher:   publisher,
		lockTTL:     23 * time.Hour,
		concurrency: 16,
		now:         time.Now,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one tick. It returns once every publish has settled. The error
// is non-nil when the store read or the topic fetch fails, and otherwise joins
// the PublishErrors of failed subscribers.
func (s *FanoutService) Run(ctx context.Context) (report FanoutReport, err error) {
	tickID, ok := TickIDFromContext(ctx)
	if !ok {
		tickID = uuid.NewString()
		ctx = WithTickID(ctx, tickID)
	}
	report.TickID = tickID
	log := contextLogger(ctx, s.log)

	if s.locker != nil {
		key := fanoutLockPrefix + s.now().Format(time.DateOnly)
		if err := s.locker.Acquire(ctx, key, s.lockTTL); err != nil {
			if errors.Is(err, lock.ErrNotAcquired) || errors.Is(err, lock.ErrAlreadyHeld) {
				log.WithField("lock", key).Info("Fan-out tick skipped, lock is held")
				return report, fmt.Errorf("%w: %s", ErrTickInProgress, key)
			}
			return report, fmt.Errorf("acquire fan-out lock: %w", err)
		}
		defer func() {
			if report.Published > 0 {
				s.locker.Forget(key)
				return
			}
			if releaseErr := s.locker.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
				log.WithError(releaseErr).Warn("Failed to release fan-out lock")
			}
		}()
	}

	subscribers, err := s.store.ListConfirmed(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list subscribers")
		return report, fmt.Errorf("list subscribers: %w", err)
	}
	report.Subscribers = len(subscribers)

	topic, err := s.fetcher.Fetch(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to fetch topic, aborting tick")
		return report, fmt.Errorf("fetch topic: %w", err)
	}

	report.Failures, err = s.publishAll(ctx, log, subscribers, topic)
	report.Published = len(subscribers) - len(report.Failures)

	entry := log.WithFields(logrus.Fields{
		"subscribers": report.Subscribers,
		"published":   report.Published,
		"failed":      len(report.Failures),
	})
	if err != nil {
		entry.WithError(err).Error("Fan-out tick finished with failures")
		return report, err
	}
	entry.Info("Fan-out tick finished")
	return report, nil
}

func (s *FanoutService) publishAll(ctx context.Context, log logrus.FieldLogger, subscribers []entity.Subscriber, topic string) ([]PublishFailure, error) {
	var (
		mu       sync.Mutex
		failures = make(map[int]error)
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sub := range subscribers {
		g.Go(func() error {
			msg := queue.DailyTopic{Email: sub.Email, Code: sub.Code, Topic: topic}
			if _, err := s.publisher.Publish(ctx, msg); err != nil {
				log.WithField("recipient", sub.Email).WithError(err).Warn("Failed to publish daily topic")
				mu.Lock()
				failures[i] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return nil, nil
	}

	out := make([]PublishFailure, 0, len(failures))
	errs := make([]error, 0, len(failures))
	for i, sub := range subscribers {
		err, failed := failures[i]
		if !failed {
			continue
		}
		out = append(out, PublishFailure{Email: sub.Email, Err: err})
		errs = append(errs, &PublishError{Email: sub.Email, Err: err})
	}
	return out, errors.Join(errs...)
}
