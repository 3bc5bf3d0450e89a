package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/serroba/shortlink/internal/metrics"
	"github.com/serroba/shortlink/internal/persistence"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPipeline(t *testing.T, repo shortener.Repository) *gochannel.GoChannel {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 16,
		Persistent:          true,
	}, watermill.NopLogger{})

	handler := persistence.NewHandler(repo, metrics.NewNop(), zap.NewNop())
	consumer := persistence.NewConsumer(pubSub, handler, zap.NewNop())

	require.NoError(t, consumer.Start(context.Background()))

	t.Cleanup(func() {
		_ = pubSub.Close()
		_ = consumer.Shutdown()
	})

	return pubSub
}

func TestPipeline(t *testing.T) {
	t.Run("duplicate deliveries persist one row", func(t *testing.T) {
		s := newStoreWithOwner(t)
		pubSub := newPipeline(t, s)
		publish := persistence.NewPublishFunc(pubSub)

		require.NoError(t, publish(context.Background(), testEvent()))
		require.NoError(t, publish(context.Background(), testEvent()))

		assert.Eventually(t, func() bool {
			_, err := s.GetByCode(context.Background(), "0000001")

			return err == nil
		}, time.Second, 5*time.Millisecond)

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("transient failure is redelivered until it succeeds", func(t *testing.T) {
		s := newStoreWithOwner(t)
		repo := &flakyRepo{Repository: s, insertFailures: 2, insertErr: errors.New("connection reset")}
		pubSub := newPipeline(t, repo)
		publish := persistence.NewPublishFunc(pubSub)

		require.NoError(t, publish(context.Background(), testEvent()))

		assert.Eventually(t, func() bool {
			return s.Len() == 1
		}, 2*time.Second, 5*time.Millisecond)

		repo.mu.Lock()
		defer repo.mu.Unlock()
		assert.Equal(t, 3, repo.inserts)
	})

	t.Run("permanent failure does not block later events", func(t *testing.T) {
		s := newStoreWithOwner(t)
		pubSub := newPipeline(t, s)
		publish := persistence.NewPublishFunc(pubSub)

		orphan := testEvent()
		orphan.ShortCode = "0000009"
		orphan.OwnerID = 404

		require.NoError(t, publish(context.Background(), orphan))
		require.NoError(t, publish(context.Background(), testEvent()))

		assert.Eventually(t, func() bool {
			_, err := s.GetByCode(context.Background(), "0000001")

			return err == nil
		}, time.Second, 5*time.Millisecond)

		_, err := s.GetByCode(context.Background(), "0000009")
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})
}
