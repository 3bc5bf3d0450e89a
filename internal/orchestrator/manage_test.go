package orchestrator_test

import (
	"context"
	"testing"

	"github.com/serroba/shortlink/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persisted shortens url for owner and consumes the event.
func (f *fixture) persisted(t *testing.T, owner shortener.OwnerID, url string) shortener.Code {
	t.Helper()

	res, err := f.svc.Shorten(context.Background(), owner, url)
	require.NoError(t, err)
	f.consume(t)

	return res.Code
}

func TestService_Update(t *testing.T) {
	t.Run("points the code at the new url", func(t *testing.T) {
		f := newFixture(t, "0000abc")
		ctx := context.Background()
		code := f.persisted(t, defaultOwner, "https://example.com/old")

		updated, err := f.svc.Update(ctx, defaultOwner, code, "https://example.com/new")

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/new", updated.LongURL)

		res, err := f.redirects.Lookup(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/new", res.LongURL)
	})

	t.Run("old url can be shortened again", func(t *testing.T) {
		f := newFixture(t, "0000abc", "0000abd")
		ctx := context.Background()
		code := f.persisted(t, defaultOwner, "https://example.com/old")

		_, err := f.svc.Update(ctx, defaultOwner, code, "https://example.com/new")
		require.NoError(t, err)

		res, err := f.svc.Shorten(ctx, defaultOwner, "https://example.com/old")

		require.NoError(t, err)
		assert.Equal(t, shortener.StatusCreated, res.Status)
		assert.NotEqual(t, code, res.Code)
	})

	t.Run("foreign code is not found", func(t *testing.T) {
		f := newFixture(t, "0000abc")
		code := f.persisted(t, defaultOwner, "https://example.com/old")

		_, err := f.svc.Update(context.Background(), privilegedOwner, code, "https://example.com/new")

		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("rejects invalid url", func(t *testing.T) {
		f := newFixture(t, "0000abc")
		code := f.persisted(t, defaultOwner, "https://example.com/old")

		_, err := f.svc.Update(context.Background(), defaultOwner, code, "not a url")

		assert.ErrorIs(t, err, shortener.ErrInvalidURL)
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("removes mapping and cache entry", func(t *testing.T) {
		f := newFixture(t, "0000abc")
		ctx := context.Background()
		code := f.persisted(t, defaultOwner, "https://example.com/a")

		_, err := f.redirects.Lookup(ctx, code)
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, defaultOwner, code))

		_, err = f.redirects.Lookup(ctx, code)
		assert.ErrorIs(t, err, shortener.ErrNotFound)

		_, err = f.svc.Get(ctx, defaultOwner, code)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("foreign code is not found", func(t *testing.T) {
		f := newFixture(t, "0000abc")
		code := f.persisted(t, defaultOwner, "https://example.com/a")

		err := f.svc.Delete(context.Background(), privilegedOwner, code)

		assert.ErrorIs(t, err, shortener.ErrNotFound)
		assert.Equal(t, 1, f.repo.Len())
	})
}

func TestService_List(t *testing.T) {
	t.Run("returns only the owner's mappings", func(t *testing.T) {
		f := newFixture(t, "0000abc", "0000abd", "0000abe")
		f.persisted(t, defaultOwner, "https://example.com/a")
		f.persisted(t, defaultOwner, "https://example.com/b")
		f.persisted(t, privilegedOwner, "https://example.com/c")

		mappings, err := f.svc.List(context.Background(), defaultOwner)

		require.NoError(t, err)
		require.Len(t, mappings, 2)
		assert.Equal(t, "https://example.com/b", mappings[0].LongURL)
		assert.Equal(t, "https://example.com/a", mappings[1].LongURL)
	})

	t.Run("requires an owner", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.List(context.Background(), 0)

		assert.ErrorIs(t, err, shortener.ErrUnauthenticated)
	})
}
