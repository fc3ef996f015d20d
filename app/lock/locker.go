package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyHeld = errors.New("lock already held by this process")
	ErrNotAcquired = errors.New("lock not acquired")
	ErrLockLost    = errors.New("lock expired or taken over before release")
)

// Locker coordinates work between replicas.
type Locker interface {
	// Acquire attempts to lock a key for the given TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	// Release frees the lock for the given key.
	Release(ctx context.Context, key string) error
}
