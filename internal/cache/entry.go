package cache

import (
	"context"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

// Entry is the cached view of a mapping. It may exist before the canonical row does.
type Entry struct {
	Code      shortener.Code
	LongURL   string
	OwnerID   shortener.OwnerID
	ExpiresAt *time.Time
}

// Expired reports whether the entry is past its expiry at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// EntryFromMapping builds the cached view of a canonical mapping.
func EntryFromMapping(m *shortener.Mapping) Entry {
	return Entry{
		Code:      m.Code,
		LongURL:   m.LongURL,
		OwnerID:   m.OwnerID,
		ExpiresAt: m.ExpiresAt,
	}
}

// EntryStore holds cache entries and the owner-URL index. Missing keys yield
// shortener.ErrNotFound.
type EntryStore interface {
	Get(ctx context.Context, code shortener.Code) (*Entry, error)
	Set(ctx context.Context, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, code shortener.Code) error

	GetOwnerURL(ctx context.Context, owner shortener.OwnerID, hash shortener.URLHash) (shortener.Code, error)
	// ClaimOwnerURL records code for (owner, hash) unless a code is already recorded.
	// It returns the recorded code and whether this call recorded it.
	ClaimOwnerURL(
		ctx context.Context, owner shortener.OwnerID, hash shortener.URLHash, code shortener.Code, ttl time.Duration,
	) (shortener.Code, bool, error)
	DeleteOwnerURL(ctx context.Context, owner shortener.OwnerID, hash shortener.URLHash) error
}
