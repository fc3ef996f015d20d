package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	ctx := context.Background()

	lockerA := NewRedisLocker(client)
	lockerB := NewRedisLocker(client)

	if err := lockerA.Acquire(ctx, "mailinglist:fanout:2026-10-17", time.Minute); err != nil {
		t.Fatalf("Acquire A: %v", err)
	}
	if err := lockerB.Acquire(ctx, "mailinglist:fanout:2026-10-17", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if err := lockerA.Release(ctx, "mailinglist:fanout:2026-10-17"); err != nil {
		t.Fatalf("Release A: %v", err)
	}
	if err := lockerB.Acquire(ctx, "mailinglist:fanout:2026-10-17", time.Minute); err != nil {
		t.Fatalf("Acquire B after release: %v", err)
	}
	if err := lockerB.Release(ctx, "mailinglist:fanout:2026-10-17"); err != nil {
		t.Fatalf("Release B: %v", err)
	}
}

func TestRedisLockerAlreadyHeld(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	locker := NewRedisLocker(client)

	if err := locker.Acquire(context.Background(), "lock-key", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(context.Background(), "lock-key", time.Minute); !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("expected ErrAlreadyHeld, got %v", err)
	}
}

func TestRedisLockerExpiresWithTTL(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	ctx := context.Background()

	lockerA := NewRedisLocker(client)
	if err := lockerA.Acquire(ctx, "lock-key", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	lockerB := NewRedisLocker(client)
	if err := lockerB.Acquire(ctx, "lock-key", time.Minute); err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	if err := lockerA.Release(ctx, "lock-key"); !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost, got %v", err)
	}
	if !mr.Exists("lock-key") {
		t.Fatalf("stale release must not delete another owner's key")
	}
}

func TestRedisLockerForgetKeepsKey(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	locker := NewRedisLocker(client)

	if err := locker.Acquire(context.Background(), "lock-key", time.Hour); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	locker.Forget("lock-key")

	if !mr.Exists("lock-key") {
		t.Fatalf("expected key to remain until its TTL")
	}
	if err := locker.Release(context.Background(), "lock-key"); err != nil {
		t.Fatalf("Release after Forget: %v", err)
	}
	if !mr.Exists("lock-key") {
		t.Fatalf("release after forget must not delete the key")
	}
}
