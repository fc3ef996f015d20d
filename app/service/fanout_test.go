package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vibast-solutions/ms-go-mailinglist/app/entity"
	"github.com/vibast-solutions/ms-go-mailinglist/app/lock"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
)

type fakeStore struct {
	subscribers []entity.Subscriber
	err         error
}

func (s fakeStore) ListConfirmed(context.Context) ([]entity.Subscriber, error) {
	return s.subscribers, s.err
}

type fakeFetcher struct {
	mu    sync.Mutex
	topic string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.topic, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	fail      map[string]bool
	published []queue.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg queue.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[msg.Recipient()] {
		return "", errors.New("redis unavailable")
	}
	p.published = append(p.published, msg)
	return "1-0", nil
}

type fakeLocker struct {
	acquireErr error
	acquired   []string
	released   []string
	forgotten  []string
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired = append(l.acquired, key)
	return nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.released = append(l.released, key)
	return nil
}

func (l *fakeLocker) Forget(key string) {
	l.forgotten = append(l.forgotten, key)
}

func subscribers(n int) []entity.Subscriber {
	subs := make([]entity.Subscriber, n)
	for i := range subs {
		subs[i] = entity.Subscriber{Email: string(rune('a'+i)) + "@b.com", Code: "code", Confirmed: true}
	}
	return subs
}

func newTestFanout(store SubscriberStore, fetcher TopicFetcher, publisher Publisher, opts ...FanoutOption) *FanoutService {
	logger, _ := test.NewNullLogger()
	opts = append([]FanoutOption{
		WithFanoutLogger(logger),
		WithFanoutClock(func() time.Time { return time.Date(2026, time.October, 17, 8, 0, 0, 0, time.UTC) }),
	}, opts...)
	return NewFanoutService(store, fetcher, publisher, opts...)
}

func TestFanoutPublishesToEverySubscriber(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{topic: "Your favourite book"}
	publisher := &fakePublisher{}
	svc := newTestFanout(fakeStore{subscribers: subscribers(5)}, fetcher, publisher, WithFanoutConcurrency(2))

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TickID == "" || report.Subscribers != 5 || report.Published != 5 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetcher.calls)
	}

	seen := make(map[string]bool)
	for _, msg := range publisher.published {
		dt, ok := msg.(queue.DailyTopic)
		if !ok {
			t.Fatalf("expected DailyTopic, got %T", msg)
		}
		if dt.Topic != "Your favourite book" || dt.Code != "code" {
			t.Fatalf("unexpected message: %+v", dt)
		}
		seen[dt.Email] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 distinct recipients, got %d", len(seen))
	}
}

func TestFanoutNoSubscribers(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	report, err := newTestFanout(fakeStore{}, &fakeFetcher{topic: "t"}, publisher).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Subscribers != 0 || report.Published != 0 || len(publisher.published) != 0 {
		t.Fatalf("expected no publishes, got %+v", report)
	}
}

func TestFanoutFetchFailureAborts(t *testing.T) {
	t.Parallel()

	fetchErr := errors.New("content fetch failed")
	publisher := &fakePublisher{}
	svc := newTestFanout(fakeStore{subscribers: subscribers(3)}, &fakeFetcher{err: fetchErr}, publisher)

	report, err := svc.Run(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if report.Published != 0 || len(publisher.published) != 0 {
		t.Fatalf("expected zero publishes, got %d", len(publisher.published))
	}
}

func TestFanoutStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("db down")
	fetcher := &fakeFetcher{topic: "t"}
	_, err := newTestFanout(fakeStore{err: storeErr}, fetcher, &fakePublisher{}).Run(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no fetch after store failure")
	}
}

func TestFanoutPublishFailuresDoNotStopSiblings(t *testing.T) {
	t.Parallel()

	subs := subscribers(4)
	publisher := &fakePublisher{fail: map[string]bool{subs[1].Email: true, subs[3].Email: true}}
	report, err := newTestFanout(fakeStore{subscribers: subs}, &fakeFetcher{topic: "t"}, publisher).Run(context.Background())

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if report.Published != 2 || len(publisher.published) != 2 {
		t.Fatalf("expected 2 successful publishes, got %+v", report)
	}
	if len(report.Failures) != 2 || report.Failures[0].Email != subs[1].Email || report.Failures[1].Email != subs[3].Email {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
}

func TestFanoutUsesTickIDFromContext(t *testing.T) {
	t.Parallel()

	ctx := WithTickID(context.Background(), "tick-1")
	report, err := newTestFanout(fakeStore{}, &fakeFetcher{topic: "t"}, &fakePublisher{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TickID != "tick-1" {
		t.Fatalf("expected tick-1, got %s", report.TickID)
	}
}

func TestFanoutLockHeldSkipsTick(t *testing.T) {
	t.Parallel()

	locker := &fakeLocker{acquireErr: lock.ErrNotAcquired}
	store := fakeStore{subscribers: subscribers(2)}
	fetcher := &fakeFetcher{topic: "t"}
	publisher := &fakePublisher{}

	_, err := newTestFanout(store, fetcher, publisher, WithTickLocker(locker, time.Hour)).Run(context.Background())
	if !errors.Is(err, ErrTickInProgress) {
		t.Fatalf("expected ErrTickInProgress, got %v", err)
	}
	if fetcher.calls != 0 || len(publisher.published) != 0 {
		t.Fatalf("skipped tick must not fetch or publish")
	}
}

func TestFanoutLockKeptAfterPublish(t *testing.T) {
	t.Parallel()

	locker := &fakeLocker{}
	svc := newTestFanout(fakeStore{subscribers: subscribers(2)}, &fakeFetcher{topic: "t"}, &fakePublisher{}, WithTickLocker(locker, time.Hour))

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(locker.acquired) != 1 || locker.acquired[0] != "mailinglist:fanout:2026-10-17" {
		t.Fatalf("unexpected lock key: %v", locker.acquired)
	}
	if len(locker.released) != 0 || len(locker.forgotten) != 1 {
		t.Fatalf("expected lock to be kept, released=%v forgotten=%v", locker.released, locker.forgotten)
	}
}

func TestFanoutLockReleasedWhenFetchFails(t *testing.T) {
	t.Parallel()

	locker := &fakeLocker{}
	svc := newTestFanout(fakeStore{subscribers: subscribers(2)}, &fakeFetcher{err: errors.New("down")}, &fakePublisher{}, WithTickLocker(locker, time.Hour))

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(locker.released) != 1 || len(locker.forgotten) != 0 {
		t.Fatalf("expected lock release, released=%v forgotten=%v", locker.released, locker.forgotten)
	}
}
