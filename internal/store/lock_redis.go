package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/keys"
)

const (
	redisLockPoll     = 100 * time.Millisecond
	lockTokenLength   = 21
	ReplenishLockName = "shortlink:key_gen_lock"
)

// releaseScript deletes the key only if it still holds our token, so an expired
// lease taken over by another instance is never released from under it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a lease-based mutual exclusion lock on a single Redis key.
type RedisLock struct {
	client   *redis.Client
	key      string
	newToken func() string

	mu    sync.Mutex
	token string
}

// NewRedisLock creates a lock handle on key. Each handle uses its own random token.
func NewRedisLock(client *redis.Client, key string) (*RedisLock, error) {
	gen, err := nanoid.Standard(lockTokenLength)
	if err != nil {
		return nil, fmt.Errorf("create token generator: %w", err)
	}

	return &RedisLock{
		client:   client,
		key:      key,
		newToken: gen,
	}, nil
}

func (r *RedisLock) TryAcquire(ctx context.Context, wait, lease time.Duration) (bool, error) {
	token := r.newToken()
	deadline := time.Now().Add(wait)

	for {
		ok, err := r.client.SetNX(ctx, r.key, token, lease).Result()
		if err != nil {
			return false, err
		}

		if ok {
			r.mu.Lock()
			r.token = token
			r.mu.Unlock()

			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(min(redisLockPoll, remaining)):
		}
	}
}

func (r *RedisLock) Release(ctx context.Context) error {
	r.mu.Lock()
	token := r.token
	r.token = ""
	r.mu.Unlock()

	if token == "" {
		return nil
	}

	return releaseScript.Run(ctx, r.client, []string{r.key}, token).Err()
}

var _ keys.Lock = (*RedisLock)(nil)
