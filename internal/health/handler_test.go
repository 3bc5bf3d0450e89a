package health_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	err error
}

func (m *mockChecker) Ping(_ context.Context) error {
	return m.err
}

func poolWith(t *testing.T, codes ...string) *store.MemoryKeyPool {
	t.Helper()

	pool := store.NewMemoryKeyPool()
	require.NoError(t, pool.AddCodes(context.Background(), codes))

	return pool
}

func TestHandler_Check(t *testing.T) {
	down := errors.New("connection refused")

	t.Run("returns ok when every store is healthy", func(t *testing.T) {
		handler := health.NewHandler(&mockChecker{}, &mockChecker{}, poolWith(t, "a", "b"))

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body.Status)
		assert.Equal(t, "healthy", resp.Body.Redis)
		assert.Equal(t, "healthy", resp.Body.Postgres)
		require.NotNil(t, resp.Body.KeyPool)
		assert.Equal(t, int64(2), *resp.Body.KeyPool)
	})

	t.Run("returns degraded when redis is unhealthy", func(t *testing.T) {
		handler := health.NewHandler(&mockChecker{err: down}, &mockChecker{}, poolWith(t))

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "degraded", resp.Body.Status)
		assert.Equal(t, "unhealthy", resp.Body.Redis)
		assert.Nil(t, resp.Body.KeyPool)
	})

	t.Run("returns degraded when postgres is unhealthy", func(t *testing.T) {
		handler := health.NewHandler(&mockChecker{}, &mockChecker{err: down}, poolWith(t))

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "degraded", resp.Body.Status)
		assert.Equal(t, "healthy", resp.Body.Redis)
		assert.Equal(t, "unhealthy", resp.Body.Postgres)
	})
}
