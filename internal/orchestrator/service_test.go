package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/keys"
	"github.com/serroba/shortlink/internal/metrics"
	"github.com/serroba/shortlink/internal/orchestrator"
	"github.com/serroba/shortlink/internal/persistence"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	defaultOwner    shortener.OwnerID = 1
	privilegedOwner shortener.OwnerID = 2
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *orchestrator.Service
	pool      *store.MemoryKeyPool
	repo      *store.MemoryStore
	redirects *cache.RedirectCache

	mu          sync.Mutex
	published   []persistence.Event
	publishErrs int // fail this many publishes before succeeding; -1 fails forever
	attempts    int
	recovered   []persistence.Event
	recoverErrs []error
}

func newFixture(t *testing.T, poolCodes ...string) *fixture {
	t.Helper()

	ctx := context.Background()
	f := &fixture{
		pool: store.NewMemoryKeyPool(),
		repo: store.NewMemoryStore(),
	}

	require.NoError(t, f.pool.AddCodes(ctx, poolCodes))
	require.NoError(t, f.repo.UpsertOwner(ctx, shortener.Owner{ID: defaultOwner, Tier: shortener.TierDefault}))
	require.NoError(t, f.repo.UpsertOwner(ctx, shortener.Owner{ID: privilegedOwner, Tier: shortener.TierPrivileged}))

	clock := func() time.Time { return fixedNow }
	m := metrics.NewNop()

	f.redirects = cache.New(store.NewMemoryEntryStoreWithClock(clock), f.repo, cache.DefaultTTL, m, zap.NewNop(),
		cache.WithClock(clock))

	cfg := orchestrator.DefaultConfig()
	cfg.PublishBackoff = time.Millisecond

	f.svc = orchestrator.New(orchestrator.Deps{
		Allocator: keys.NewAllocator(f.pool, 7, m, zap.NewNop()),
		Repo:      f.repo,
		Owners:    f.repo,
		Cache:     f.redirects,
		Publish:   f.publish,
		Recovery:  orchestrator.RecoveryFunc(f.recover),
		Metrics:   m,
		Logger:    zap.NewNop(),
	}, cfg, orchestrator.WithClock(clock))

	return f
}

func (f *fixture) publish(_ context.Context, event *persistence.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++

	if f.publishErrs != 0 {
		if f.publishErrs > 0 {
			f.publishErrs--
		}

		return errors.New("stream unavailable")
	}

	f.published = append(f.published, *event)

	return nil
}

func (f *fixture) recover(_ context.Context, event *persistence.Event, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recovered = append(f.recovered, *event)
	f.recoverErrs = append(f.recoverErrs, cause)

	return nil
}

// consume applies every published event to the canonical store.
func (f *fixture) consume(t *testing.T) {
	t.Helper()

	h := persistence.NewHandler(f.repo, metrics.NewNop(), zap.NewNop())

	f.mu.Lock()
	events := f.published
	f.published = nil
	f.mu.Unlock()

	for i := range events {
		require.NoError(t, h.Handle(context.Background(), &events[i]))
	}
}

func TestService_Shorten(t *testing.T) {
	t.Run("default tier expires after retention", func(t *testing.T) {
		f := newFixture(t, "0000abc")

		res, err := f.svc.Shorten(context.Background(), defaultOwner, "https://example.com/a")

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("0000abc"), res.Code)
		assert.Equal(t, shortener.StatusCreated, res.Status)
		require.NotNil(t, res.ExpiresAt)
		assert.Equal(t, fixedNow.Add(7*24*time.Hour), *res.ExpiresAt)

		require.Len(t, f.published, 1)
		assert.Equal(t, persistence.Event{
			ShortCode: "0000abc",
			LongURL:   "https://example.com/a",
			OwnerID:   defaultOwner,
			ExpiresAt: res.ExpiresAt,
		}, f.published[0])
	})

	t.Run("privileged tier never expires", func(t *testing.T) {
		f := newFixture(t, "0000abc")

		res, err := f.svc.Shorten(context.Background(), privilegedOwner, "https://example.com/a")

		require.NoError(t, err)
		assert.Nil(t, res.ExpiresAt)
		require.Len(t, f.published, 1)
		assert.Nil(t, f.published[0].ExpiresAt)
	})

	t.Run("new mapping resolves before it is persisted", func(t *testing.T) {
		f := newFixture(t, "0000abc")

		_, err := f.svc.Shorten(context.Background(), defaultOwner, "https://example.com/a")
		require.NoError(t, err)

		res, err := f.redirects.Lookup(context.Background(), "0000abc")

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", res.LongURL)
		assert.True(t, res.Provisional)
	})

	t.Run("repeat submission before persistence returns the same code", func(t *testing.T) {
		f := newFixture(t, "0000abc", "0000abd")
		ctx := context.Background()

		first, err := f.svc.Shorten(ctx, defaultOwner, "https://example.com/a")
		require.NoError(t, err)

		second, err := f.svc.Shorten(ctx, defaultOwner, "https://example.com/a")
		require.NoError(t, err)

		assert.Equal(t, first.Code, second.Code)
		assert.Equal(t, shortener.StatusAlreadyExists, second.Status)
		assert.Len(t, f.published, 1)

		size, _ := f.pool.PoolSize(ctx)
		assert.Equal(t, int64(1), size)
	})

	t.Run("repeat submission after persistence returns the canonical mapping", func(t *testing.T) {
		f := newFixture(t, "0000abc", "0000abd")
		ctx := context.Background()

		first, err := f.svc.Shorten(ctx, defaultOwner, "https://example.com/a")
		require.NoError(t, err)
		f.consume(t)

		_, err = f.redirects.Lookup(ctx, first.Code)
		require.NoError(t, err)

		second, err := f.svc.Shorten(ctx, defaultOwner, "https://example.com/a")

		require.NoError(t, err)
		assert.Equal(t, first.Code, second.Code)
		assert.Equal(t, shortener.StatusAlreadyExists, second.Status)
		assert.Equal(t, int64(1), second.ClickCount)
	})

	t.Run("same url from different owners gets different codes", func(t *testing.T) {
		f := newFixture(t, "0000abc", "0000abd")
		ctx := context.Background()

		a, err := f.svc.Shorten(ctx, defaultOwner, "https://example.com/a")
		require.NoError(t, err)

		b, err := f.svc.Shorten(ctx, privilegedOwner, "https://example.com/a")
		require.NoError(t, err)

		assert.NotEqual(t, a.Code, b.Code)
	})

	t.Run("concurrent identical submissions share one code", func(t *testing.T) {
		f := newFixture(t, "a", "b", "c", "d", "e", "f", "g", "h")
		ctx := context.Background()

		const callers = 8

		codes := make(chan shortener.Code, callers)

		var wg sync.WaitGroup

		for range callers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				res, err := f.svc.Shorten(ctx, defaultOwner, "https://example.com/same")
				assert.NoError(t, err)

				codes <- res.Code
			}()
		}

		wg.Wait()
		close(codes)

		seen := make(map[shortener.Code]bool)
		for code := range codes {
			seen[code] = true
		}

		assert.Len(t, seen, 1)
		assert.Len(t, f.published, 1)
	})

	t.Run("publish succeeds within the retry budget", func(t *testing.T) {
		f := newFixture(t, "0000abc")
		f.publishErrs = 2

		res, err := f.svc.Shorten(context.Background(), defaultOwner, "https://example.com/a")

		require.NoError(t, err)
		assert.Equal(t, shortener.StatusCreated, res.Status)
		assert.Equal(t, 3, f.attempts)
		assert.Empty(t, f.recovered)
	})

	t.Run("exhausted publish hands the event to recovery once", func(t *testing.T) {
		f := newFixture(t, "0000abc")
		f.publishErrs = -1

		res, err := f.svc.Shorten(context.Background(), defaultOwner, "https://example.com/a")

		require.NoError(t, err)
		assert.Equal(t, shortener.StatusPersistencePendingFailed, res.Status)
		assert.Equal(t, shortener.Code("0000abc"), res.Code)
		assert.Equal(t, 3, f.attempts)

		require.Len(t, f.recovered, 1)
		assert.Equal(t, persistence.Event{
			ShortCode: "0000abc",
			LongURL:   "https://example.com/a",
			OwnerID:   defaultOwner,
			ExpiresAt: res.ExpiresAt,
		}, f.recovered[0])
		assert.ErrorIs(t, f.recoverErrs[0], shortener.ErrPersistenceLag)

		resolved, err := f.redirects.Lookup(context.Background(), "0000abc")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", resolved.LongURL)
	})

	t.Run("missing owner is rejected before allocation", func(t *testing.T) {
		f := newFixture(t, "0000abc")

		res, err := f.svc.Shorten(context.Background(), 0, "https://example.com/a")

		assert.Nil(t, res)
		assert.ErrorIs(t, err, shortener.ErrUnauthenticated)
		assert.True(t, f.pool.Contains("0000abc"))
		assert.Zero(t, f.pool.Counter())
	})

	t.Run("unknown owner is rejected before allocation", func(t *testing.T) {
		f := newFixture(t, "0000abc")

		_, err := f.svc.Shorten(context.Background(), 99, "https://example.com/a")

		assert.ErrorIs(t, err, shortener.ErrUnauthenticated)
		assert.True(t, f.pool.Contains("0000abc"))
	})

	t.Run("invalid url is rejected before allocation", func(t *testing.T) {
		f := newFixture(t, "0000abc")

		_, err := f.svc.Shorten(context.Background(), defaultOwner, "ftp://example.com/a")

		assert.ErrorIs(t, err, shortener.ErrInvalidURL)
		assert.ErrorIs(t, err, shortener.ErrValidation)
		assert.True(t, f.pool.Contains("0000abc"))
		assert.Empty(t, f.published)
	})

	t.Run("empty pool falls back to the counter", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.Shorten(context.Background(), defaultOwner, "https://example.com/a")

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("0000000"), res.Code)
		assert.Equal(t, uint64(1), f.pool.Counter())
	})
}

func TestPublishBackOff(t *testing.T) {
	t.Run("waits one then two seconds between three attempts", func(t *testing.T) {
		b := orchestrator.PublishBackOff(orchestrator.DefaultConfig())

		assert.Equal(t, time.Second, b.NextBackOff())
		assert.Equal(t, 2*time.Second, b.NextBackOff())
		assert.Equal(t, backoff.Stop, b.NextBackOff())
	})

	t.Run("single attempt never retries", func(t *testing.T) {
		cfg := orchestrator.DefaultConfig()
		cfg.PublishAttempts = 1

		assert.Equal(t, backoff.Stop, orchestrator.PublishBackOff(cfg).NextBackOff())
	})
}
