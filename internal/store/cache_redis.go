package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/shortener"
)

// claimScript sets the owner-URL key only if absent and returns whichever code it holds.
var claimScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	return current
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return ARGV[1]
`)

// RedisEntryStore is a Redis implementation of cache.EntryStore.
type RedisEntryStore struct {
	client      *redis.Client
	entryPrefix string // hash per code
	ownerPrefix string // owner and url hash to code
}

// NewRedisEntryStore creates a Redis-backed cache entry store.
func NewRedisEntryStore(client *redis.Client) *RedisEntryStore {
	return &RedisEntryStore{
		client:      client,
		entryPrefix: "shortcode:",
		ownerPrefix: "owner_url:",
	}
}

func (r *RedisEntryStore) Get(ctx context.Context, code shortener.Code) (*cache.Entry, error) {
	result, err := r.client.HGetAll(ctx, r.entryPrefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, shortener.ErrNotFound
	}

	owner, err := strconv.ParseInt(result["owner_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse owner_id: %w", err)
	}

	entry := &cache.Entry{
		Code:    code,
		LongURL: result["long_url"],
		OwnerID: shortener.OwnerID(owner),
	}

	if ts := result["expires_at"]; ts != "" {
		nanos, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}

		expiresAt := time.Unix(0, nanos).UTC()
		entry.ExpiresAt = &expiresAt
	}

	return entry, nil
}

func (r *RedisEntryStore) Set(ctx context.Context, entry cache.Entry, ttl time.Duration) error {
	key := r.entryPrefix + string(entry.Code)

	expiresAt := ""
	if entry.ExpiresAt != nil {
		expiresAt = strconv.FormatInt(entry.ExpiresAt.UnixNano(), 10)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"long_url":   entry.LongURL,
		"owner_id":   int64(entry.OwnerID),
		"expires_at": expiresAt,
	})
	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)

	return err
}

func (r *RedisEntryStore) Delete(ctx context.Context, code shortener.Code) error {
	return r.client.Del(ctx, r.entryPrefix+string(code)).Err()
}

func (r *RedisEntryStore) GetOwnerURL(
	ctx context.Context, owner shortener.OwnerID, hash shortener.URLHash,
) (shortener.Code, error) {
	code, err := r.client.Get(ctx, r.ownerKey(owner, hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", shortener.ErrNotFound
		}

		return "", err
	}

	return shortener.Code(code), nil
}

func (r *RedisEntryStore) ClaimOwnerURL(
	ctx context.Context, owner shortener.OwnerID, hash shortener.URLHash, code shortener.Code, ttl time.Duration,
) (shortener.Code, bool, error) {
	recorded, err := claimScript.Run(ctx, r.client,
		[]string{r.ownerKey(owner, hash)}, string(code), max(ttl.Milliseconds(), 1)).Text()
	if err != nil {
		return "", false, err
	}

	return shortener.Code(recorded), recorded == string(code), nil
}

func (r *RedisEntryStore) DeleteOwnerURL(ctx context.Context, owner shortener.OwnerID, hash shortener.URLHash) error {
	return r.client.Del(ctx, r.ownerKey(owner, hash)).Err()
}

func (r *RedisEntryStore) ownerKey(owner shortener.OwnerID, hash shortener.URLHash) string {
	return r.ownerPrefix + strconv.FormatInt(int64(owner), 10) + ":" + string(hash)
}

var _ cache.EntryStore = (*RedisEntryStore)(nil)
