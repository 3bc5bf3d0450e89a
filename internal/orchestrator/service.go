// Package orchestrator coordinates code allocation, the durability channel and the
// redirect cache for every write a client makes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/metrics"
	"github.com/serroba/shortlink/internal/persistence"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Allocator issues unique codes.
type Allocator interface {
	Allocate(ctx context.Context) (shortener.Code, error)
}

// Cache is the write side of the redirect cache.
type Cache interface {
	Put(ctx context.Context, entry cache.Entry) error
	Invalidate(ctx context.Context, code shortener.Code) error
	LookupOwnerURL(ctx context.Context, owner shortener.OwnerID, longURL string) (*cache.Entry, error)
	ClaimOwnerURL(
		ctx context.Context, owner shortener.OwnerID, longURL string, code shortener.Code, expiresAt *time.Time,
	) (shortener.Code, bool, error)
	ForgetOwnerURL(ctx context.Context, owner shortener.OwnerID, longURL string) error
}

// RecoveryHook receives events that could not be published after every attempt.
type RecoveryHook interface {
	Record(ctx context.Context, event *persistence.Event, cause error) error
}

// RecoveryFunc adapts a function to RecoveryHook.
type RecoveryFunc func(ctx context.Context, event *persistence.Event, cause error) error

func (f RecoveryFunc) Record(ctx context.Context, event *persistence.Event, cause error) error {
	return f(ctx, event, cause)
}

// Config holds the write path tunables.
type Config struct {
	Retention       time.Duration // lifetime of default-tier mappings
	PublishAttempts int
	PublishBackoff  time.Duration // delay before the second attempt, doubled after each failure
}

// DefaultConfig returns a 7 day retention and 3 publish attempts backing off 1s then 2s.
func DefaultConfig() Config {
	return Config{
		Retention:       7 * 24 * time.Hour,
		PublishAttempts: 3,
		PublishBackoff:  time.Second,
	}
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Allocator Allocator
	Repo      shortener.Repository
	Owners    shortener.OwnerDirectory
	Cache     Cache
	Publish   messaging.Publish[persistence.Event]
	Recovery  RecoveryHook
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Service implements shortening and owner management of mappings.
type Service struct {
	Deps

	cfg Config
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(deps Deps, cfg Config, opts ...Option) *Service {
	s := &Service{
		Deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Shorten issues a code for longURL on behalf of owner. A repeat submission of the
// same URL by the same owner returns the existing code. Failing to publish the
// persistence event is reported through the result status, not as an error.
func (s *Service) Shorten(ctx context.Context, owner shortener.OwnerID, longURL string) (*shortener.Result, error) {
	account, err := s.authenticate(ctx, owner)
	if err != nil {
		return nil, err
	}

	if err := shortener.ValidateURL(longURL); err != nil {
		return nil, err
	}

	now := s.now()
	log := s.Logger.With(zap.Int64("owner", int64(owner)))

	if existing := s.findExisting(ctx, log, owner, longURL, now); existing != nil {
		return existing, nil
	}

	code, err := s.Allocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	log = log.With(zap.String("code", string(code)))

	var expiresAt *time.Time

	if account.Tier != shortener.TierPrivileged {
		t := now.Add(s.cfg.Retention)
		expiresAt = &t
	}

	winner, claimed, err := s.Cache.ClaimOwnerURL(ctx, owner, longURL, code, expiresAt)
	if err != nil {
		log.Warn("failed to claim owner url index", zap.Error(err))
	} else if !claimed {
		log.Info("concurrent request already shortened url, code discarded", zap.String("winner", string(winner)))

		return s.claimedBy(ctx, owner, longURL, winner, expiresAt), nil
	}

	event := &persistence.Event{
		ShortCode: code,
		LongURL:   longURL,
		OwnerID:   owner,
		ExpiresAt: expiresAt,
	}

	status := shortener.StatusCreated

	if err := s.publish(ctx, log, event); err != nil {
		status = shortener.StatusPersistencePendingFailed
		s.recover(ctx, log, event, err)
	}

	if err := s.Cache.Put(ctx, cache.Entry{
		Code:      code,
		LongURL:   longURL,
		OwnerID:   owner,
		ExpiresAt: expiresAt,
	}); err != nil {
		log.Warn("failed to prime cache", zap.Error(err))
	}

	log.Info("url shortened", zap.String("status", string(status)))

	return &shortener.Result{
		Code:      code,
		LongURL:   longURL,
		ExpiresAt: expiresAt,
		Status:    status,
	}, nil
}

func (s *Service) authenticate(ctx context.Context, owner shortener.OwnerID) (*shortener.Owner, error) {
	if owner <= 0 {
		return nil, shortener.ErrUnauthenticated
	}

	account, err := s.Owners.GetOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, shortener.ErrOwnerNotFound) {
			return nil, shortener.ErrUnauthenticated
		}

		return nil, fmt.Errorf("%w: get owner: %v", shortener.ErrUnavailable, err)
	}

	return account, nil
}

// findExisting checks the canonical store and then the owner-URL index, which
// covers submissions whose persistence event has not been consumed yet.
func (s *Service) findExisting(
	ctx context.Context, log *zap.Logger, owner shortener.OwnerID, longURL string, now time.Time,
) *shortener.Result {
	mapping, err := s.Repo.GetByOwnerURL(ctx, owner, longURL)

	switch {
	case err == nil && !mapping.Expired(now):
		return &shortener.Result{
			Code:       mapping.Code,
			LongURL:    mapping.LongURL,
			ClickCount: mapping.ClickCount,
			ExpiresAt:  mapping.ExpiresAt,
			Status:     shortener.StatusAlreadyExists,
		}
	case err != nil && !errors.Is(err, shortener.ErrNotFound):
		log.Warn("canonical lookup failed, checking cache only", zap.Error(err))
	}

	entry, err := s.Cache.LookupOwnerURL(ctx, owner, longURL)
	if err != nil {
		if !errors.Is(err, shortener.ErrNotFound) {
			log.Warn("owner url index lookup failed", zap.Error(err))
		}

		return nil
	}

	return &shortener.Result{
		Code:      entry.Code,
		LongURL:   entry.LongURL,
		ExpiresAt: entry.ExpiresAt,
		Status:    shortener.StatusAlreadyExists,
	}
}

func (s *Service) claimedBy(
	ctx context.Context, owner shortener.OwnerID, longURL string, winner shortener.Code, expiresAt *time.Time,
) *shortener.Result {
	if entry, err := s.Cache.LookupOwnerURL(ctx, owner, longURL); err == nil && entry.Code == winner {
		expiresAt = entry.ExpiresAt
	}

	return &shortener.Result{
		Code:      winner,
		LongURL:   longURL,
		ExpiresAt: expiresAt,
		Status:    shortener.StatusAlreadyExists,
	}
}

func (s *Service) publish(ctx context.Context, log *zap.Logger, event *persistence.Event) error {
	return backoff.RetryNotify(
		func() error { return s.Publish(ctx, event) },
		backoff.WithContext(PublishBackOff(s.cfg), ctx),
		func(err error, wait time.Duration) {
			log.Warn("publish failed, retrying", zap.Duration("wait", wait), zap.Error(err))
		},
	)
}

// PublishBackOff returns the delays between publish attempts: PublishBackoff
// first, doubled after each failure, stopping once PublishAttempts are spent.
func PublishBackOff(cfg Config) backoff.BackOff {
	if cfg.PublishAttempts <= 1 {
		return &backoff.StopBackOff{}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.PublishBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	b := backoff.WithMaxRetries(policy, uint64(cfg.PublishAttempts-1))
	b.Reset()

	return b
}

func (s *Service) recover(ctx context.Context, log *zap.Logger, event *persistence.Event, cause error) {
	s.Metrics.PublishFailures.Inc()
	log.Error("persistence event not published, handing to recovery",
		zap.Int("attempts", s.cfg.PublishAttempts),
		zap.Error(cause),
	)

	if err := s.Recovery.Record(context.WithoutCancel(ctx), event, errors.Join(shortener.ErrPersistenceLag, cause)); err != nil {
		log.Error("recovery hook failed, mapping exists only in cache", zap.Error(err))
	}
}
