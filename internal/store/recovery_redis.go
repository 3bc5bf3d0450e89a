package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/persistence"
	"go.uber.org/zap"
)

// FailedPublish is a persistence event that could not be handed to the durability channel.
type FailedPublish struct {
	Event    persistence.Event `json:"event"`
	Error    string            `json:"error"`
	FailedAt time.Time         `json:"failedAt"`
}

// RedisRecoveryLog keeps failed persistence events in a Redis list for operator replay.
// Entries are pushed on the left and drained from the right, oldest first.
type RedisRecoveryLog struct {
	client *redis.Client
	key    string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisRecoveryLog creates a recovery log on the shortlink:persistence_failures list.
func NewRedisRecoveryLog(client *redis.Client, logger *zap.Logger) *RedisRecoveryLog {
	return &RedisRecoveryLog{
		client: client,
		key:    "shortlink:persistence_failures",
		logger: logger,
		now:    time.Now,
	}
}

// Record appends event with the error that exhausted its publish attempts.
func (r *RedisRecoveryLog) Record(ctx context.Context, event *persistence.Event, cause error) error {
	entry := FailedPublish{
		Event:    *event,
		FailedAt: r.now().UTC(),
	}

	if cause != nil {
		entry.Error = cause.Error()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return r.client.LPush(ctx, r.key, payload).Err()
}

// Len returns the number of events awaiting replay.
func (r *RedisRecoveryLog) Len(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key).Result()
}

// Drain hands entries to fn oldest first until the list is empty or fn fails.
// A failed entry is put back at the tail so it is retried first next time.
// Unreadable entries are logged with their raw payload and dropped.
func (r *RedisRecoveryLog) Drain(ctx context.Context, fn func(ctx context.Context, entry FailedPublish) error) (int, error) {
	drained := 0

	for {
		if err := ctx.Err(); err != nil {
			return drained, err
		}

		raw, err := r.client.RPop(ctx, r.key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return drained, nil
			}

			return drained, err
		}

		var entry FailedPublish
		if err := json.Unmarshal(raw, &entry); err != nil {
			r.logger.Error("dropping unreadable recovery entry",
				zap.String("key", r.key),
				zap.ByteString("payload", raw),
				zap.Error(err),
			)

			continue
		}

		if err := fn(ctx, entry); err != nil {
			if pushErr := r.client.RPush(context.WithoutCancel(ctx), r.key, raw).Err(); pushErr != nil {
				return drained, errors.Join(err, fmt.Errorf("requeue entry: %w", pushErr))
			}

			return drained, err
		}

		drained++
	}
}
