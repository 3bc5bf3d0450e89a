package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/keys"
)

const addCodesChunk = 1000

// RedisKeyPool is a Redis implementation of keys.Store.
// SPOP and INCRBY give the single-winner guarantees across instances.
type RedisKeyPool struct {
	client     *redis.Client
	poolKey    string // set of issuable codes
	counterKey string // next unreserved id
}

// NewRedisKeyPool creates a Redis-backed key pool.
func NewRedisKeyPool(client *redis.Client) *RedisKeyPool {
	return &RedisKeyPool{
		client:     client,
		poolKey:    "shortlink:key_pool",
		counterKey: "shortlink:key_counter",
	}
}

func (r *RedisKeyPool) PopCode(ctx context.Context) (string, error) {
	code, err := r.client.SPop(ctx, r.poolKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", keys.ErrPoolEmpty
		}

		return "", err
	}

	return code, nil
}

func (r *RedisKeyPool) AddCodes(ctx context.Context, codes []string) error {
	pipe := r.client.Pipeline()

	for start := 0; start < len(codes); start += addCodesChunk {
		end := min(start+addCodesChunk, len(codes))

		members := make([]interface{}, 0, end-start)
		for _, code := range codes[start:end] {
			members = append(members, code)
		}

		pipe.SAdd(ctx, r.poolKey, members...)
	}

	_, err := pipe.Exec(ctx)

	return err
}

func (r *RedisKeyPool) PoolSize(ctx context.Context) (int64, error) {
	return r.client.SCard(ctx, r.poolKey).Result()
}

func (r *RedisKeyPool) Reserve(ctx context.Context, n int64) (uint64, error) {
	end, err := r.client.IncrBy(ctx, r.counterKey, n).Result()
	if err != nil {
		return 0, err
	}

	return uint64(end - n), nil
}

var _ keys.Store = (*RedisKeyPool)(nil)
