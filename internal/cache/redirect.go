// Package cache resolves codes through a short-lived cache backed by the canonical store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortlink/internal/metrics"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long an entry stays cached.
const DefaultTTL = time.Hour

// Lookup result labels.
const (
	resultHit         = "hit"
	resultMiss        = "miss"
	resultProvisional = "provisional"
	resultExpired     = "expired"
	resultError       = "error"
)

// Canonical is the part of the canonical store the cache reads through.
type Canonical interface {
	GetByCode(ctx context.Context, code shortener.Code) (*shortener.Mapping, error)
	IncrementClicks(ctx context.Context, code shortener.Code, now time.Time) (*shortener.Mapping, error)
}

// Resolution is the outcome of resolving a code.
type Resolution struct {
	Code       shortener.Code
	LongURL    string
	ClickCount int64
	ExpiresAt  *time.Time
	// Provisional is set when the mapping is only known to the cache because its
	// persistence event has not been consumed yet.
	Provisional bool
}

// RedirectCache is a read-through and write-through cache over the canonical store.
type RedirectCache struct {
	entries   EntryStore
	canonical Canonical
	ttl       time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a RedirectCache.
type Option func(*RedirectCache)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *RedirectCache) {
		c.now = now
	}
}

// New creates a RedirectCache.
func New(
	entries EntryStore, canonical Canonical, ttl time.Duration,
	m *metrics.Metrics, logger *zap.Logger, opts ...Option,
) *RedirectCache {
	c := &RedirectCache{
		entries:   entries,
		canonical: canonical,
		ttl:       ttl,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Lookup resolves code and records one click in the canonical store.
// Unknown and expired codes both yield shortener.ErrNotFound.
func (c *RedirectCache) Lookup(ctx context.Context, code shortener.Code) (*Resolution, error) {
	now := c.now()

	entry, err := c.entries.Get(ctx, code)
	if err != nil {
		if !errors.Is(err, shortener.ErrNotFound) {
			c.logger.Warn("cache read failed, falling back to canonical store",
				zap.String("code", string(code)), zap.Error(err))
		}

		entry = nil
	}

	if entry != nil && entry.Expired(now) {
		c.evict(ctx, code)
		c.count(resultExpired)

		return nil, shortener.ErrNotFound
	}

	mapping, err := c.canonical.IncrementClicks(ctx, code, now)
	if err == nil {
		if entry != nil {
			c.count(resultHit)
		} else {
			c.count(resultMiss)
		}

		return c.resolved(ctx, mapping, now), nil
	}

	if !errors.Is(err, shortener.ErrNotFound) {
		c.count(resultError)

		return nil, fmt.Errorf("%w: increment clicks: %v", shortener.ErrUnavailable, err)
	}

	if entry == nil {
		c.count(resultMiss)

		return nil, shortener.ErrNotFound
	}

	// The cache knows the code but the increment matched nothing: the row expired,
	// its persistence event has not been consumed yet, or it was consumed since.
	mapping, err = c.canonical.GetByCode(ctx, code)

	switch {
	case errors.Is(err, shortener.ErrNotFound):
		c.count(resultProvisional)

		return &Resolution{
			Code:        entry.Code,
			LongURL:     entry.LongURL,
			ExpiresAt:   entry.ExpiresAt,
			Provisional: true,
		}, nil
	case err != nil:
		c.count(resultError)

		return nil, fmt.Errorf("%w: get by code: %v", shortener.ErrUnavailable, err)
	case mapping.Expired(now):
		c.evict(ctx, code)
		c.count(resultExpired)

		return nil, shortener.ErrNotFound
	}

	mapping, err = c.canonical.IncrementClicks(ctx, code, now)
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			c.evict(ctx, code)
			c.count(resultExpired)

			return nil, shortener.ErrNotFound
		}

		c.count(resultError)

		return nil, fmt.Errorf("%w: increment clicks: %v", shortener.ErrUnavailable, err)
	}

	c.count(resultHit)

	return c.resolved(ctx, mapping, now), nil
}

func (c *RedirectCache) resolved(ctx context.Context, mapping *shortener.Mapping, now time.Time) *Resolution {
	c.store(ctx, EntryFromMapping(mapping), now)

	return &Resolution{
		Code:       mapping.Code,
		LongURL:    mapping.LongURL,
		ClickCount: mapping.ClickCount,
		ExpiresAt:  mapping.ExpiresAt,
	}
}

// Put caches entry. The TTL never outlives the entry's own expiry.
func (c *RedirectCache) Put(ctx context.Context, entry Entry) error {
	ttl, ok := c.ttlFor(entry.ExpiresAt, c.now())
	if !ok {
		return nil
	}

	return c.entries.Set(ctx, entry, ttl)
}

// Invalidate drops the cached entry for code.
func (c *RedirectCache) Invalidate(ctx context.Context, code shortener.Code) error {
	return c.entries.Delete(ctx, code)
}

// LookupOwnerURL returns the live cached mapping an owner already created for longURL.
func (c *RedirectCache) LookupOwnerURL(
	ctx context.Context, owner shortener.OwnerID, longURL string,
) (*Entry, error) {
	code, err := c.entries.GetOwnerURL(ctx, owner, shortener.HashURL(longURL))
	if err != nil {
		return nil, err
	}

	entry, err := c.entries.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if entry.OwnerID != owner || entry.LongURL != longURL || entry.Expired(c.now()) {
		return nil, shortener.ErrNotFound
	}

	return entry, nil
}

// ClaimOwnerURL records code as the owner's mapping for longURL unless another
// request recorded one first, in which case that code is returned with false.
func (c *RedirectCache) ClaimOwnerURL(
	ctx context.Context, owner shortener.OwnerID, longURL string, code shortener.Code, expiresAt *time.Time,
) (shortener.Code, bool, error) {
	ttl, ok := c.ttlFor(expiresAt, c.now())
	if !ok {
		return code, true, nil
	}

	return c.entries.ClaimOwnerURL(ctx, owner, shortener.HashURL(longURL), code, ttl)
}

// ForgetOwnerURL drops the owner-URL index entry for longURL.
func (c *RedirectCache) ForgetOwnerURL(ctx context.Context, owner shortener.OwnerID, longURL string) error {
	return c.entries.DeleteOwnerURL(ctx, owner, shortener.HashURL(longURL))
}

func (c *RedirectCache) ttlFor(expiresAt *time.Time, now time.Time) (time.Duration, bool) {
	if expiresAt == nil {
		return c.ttl, true
	}

	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0, false
	}

	return min(c.ttl, remaining), true
}

func (c *RedirectCache) store(ctx context.Context, entry Entry, now time.Time) {
	ttl, ok := c.ttlFor(entry.ExpiresAt, now)
	if !ok {
		return
	}

	if err := c.entries.Set(ctx, entry, ttl); err != nil {
		c.logger.Warn("failed to populate cache", zap.String("code", string(entry.Code)), zap.Error(err))
	}
}

func (c *RedirectCache) evict(ctx context.Context, code shortener.Code) {
	if err := c.entries.Delete(ctx, code); err != nil {
		c.logger.Warn("failed to invalidate cache entry", zap.String("code", string(code)), zap.Error(err))
	}
}

func (c *RedirectCache) count(result string) {
	c.metrics.CacheLookups.WithLabelValues(result).Inc()
}
