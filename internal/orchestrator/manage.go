package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Get returns the canonical mapping for code if owner created it.
func (s *Service) Get(ctx context.Context, owner shortener.OwnerID, code shortener.Code) (*shortener.Mapping, error) {
	if _, err := s.authenticate(ctx, owner); err != nil {
		return nil, err
	}

	return s.owned(ctx, owner, code)
}

// List returns the owner's canonical mappings, newest first.
func (s *Service) List(ctx context.Context, owner shortener.OwnerID) ([]shortener.Mapping, error) {
	if _, err := s.authenticate(ctx, owner); err != nil {
		return nil, err
	}

	mappings, err := s.Repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: list mappings: %v", shortener.ErrUnavailable, err)
	}

	return mappings, nil
}

// Update points an owned code at a new URL and refreshes the cache.
func (s *Service) Update(
	ctx context.Context, owner shortener.OwnerID, code shortener.Code, longURL string,
) (*shortener.Mapping, error) {
	if _, err := s.authenticate(ctx, owner); err != nil {
		return nil, err
	}

	if err := shortener.ValidateURL(longURL); err != nil {
		return nil, err
	}

	current, err := s.owned(ctx, owner, code)
	if err != nil {
		return nil, err
	}

	updated, err := s.Repo.UpdateURL(ctx, owner, code, longURL)
	if err != nil {
		return nil, canonicalErr("update mapping", err)
	}

	log := s.Logger.With(zap.Int64("owner", int64(owner)), zap.String("code", string(code)))

	s.forget(ctx, log, owner, code, current.LongURL)

	if err := s.Cache.Put(ctx, cache.EntryFromMapping(updated)); err != nil {
		log.Warn("failed to refresh cache", zap.Error(err))
	}

	log.Info("mapping updated")

	return updated, nil
}

// Delete removes an owned code. The code is never reissued.
func (s *Service) Delete(ctx context.Context, owner shortener.OwnerID, code shortener.Code) error {
	if _, err := s.authenticate(ctx, owner); err != nil {
		return err
	}

	current, err := s.owned(ctx, owner, code)
	if err != nil {
		return err
	}

	if err := s.Repo.Delete(ctx, owner, code); err != nil {
		return canonicalErr("delete mapping", err)
	}

	log := s.Logger.With(zap.Int64("owner", int64(owner)), zap.String("code", string(code)))
	s.forget(ctx, log, owner, code, current.LongURL)
	log.Info("mapping deleted")

	return nil
}

// owned hides mappings of other owners behind ErrNotFound.
func (s *Service) owned(ctx context.Context, owner shortener.OwnerID, code shortener.Code) (*shortener.Mapping, error) {
	mapping, err := s.Repo.GetByCode(ctx, code)
	if err != nil {
		return nil, canonicalErr("get mapping", err)
	}

	if mapping.OwnerID != owner {
		return nil, shortener.ErrNotFound
	}

	return mapping, nil
}

func (s *Service) forget(ctx context.Context, log *zap.Logger, owner shortener.OwnerID, code shortener.Code, longURL string) {
	if err := s.Cache.Invalidate(ctx, code); err != nil {
		log.Warn("failed to invalidate cache entry", zap.Error(err))
	}

	if err := s.Cache.ForgetOwnerURL(ctx, owner, longURL); err != nil {
		log.Warn("failed to drop owner url index", zap.Error(err))
	}
}

func canonicalErr(op string, err error) error {
	if errors.Is(err, shortener.ErrNotFound) {
		return shortener.ErrNotFound
	}

	return fmt.Errorf("%w: %s: %v", shortener.ErrUnavailable, op, err)
}
