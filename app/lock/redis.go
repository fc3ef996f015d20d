package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

type RedisLocker struct {
	client redis.Cmdable
	mu     sync.Mutex
	held   map[string]string
}

// NewRedisLocker constructs a Redis-based lock manager.
func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{
		client: client,
		held:   make(map[string]string),
	}
}

// Acquire sets key with a TTL if it does not exist and remembers the owner token.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.held[key]; exists {
		return ErrAlreadyHeld
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}

	l.held[key] = token
	return nil
}

// Release deletes key if this process still owns it. Releasing a key that
// was never acquired is a no-op.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	deleted, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrLockLost, key)
	}
	return nil
}

// Forget drops the local ownership record and leaves the key in Redis to
// expire on its own TTL.
func (l *RedisLocker) Forget(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}
