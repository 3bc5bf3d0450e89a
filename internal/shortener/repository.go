package shortener

import (
	"context"
	"errors"
	"time"
)

// ErrOwnerNotFound is returned when a mapping references an owner the store does not know.
var ErrOwnerNotFound = errors.New("owner not found")

// Repository is the canonical, authoritative store of mappings.
type Repository interface {
	// Insert stores a new mapping. It returns ErrConflict when the code already exists
	// and ErrOwnerNotFound when the owner is unknown.
	Insert(ctx context.Context, mapping *Mapping) error
	GetByCode(ctx context.Context, code Code) (*Mapping, error)
	GetByOwnerURL(ctx context.Context, owner OwnerID, longURL string) (*Mapping, error)

	// IncrementClicks adds one click to a live mapping and returns it.
	// Expired and missing mappings both yield ErrNotFound.
	IncrementClicks(ctx context.Context, code Code, now time.Time) (*Mapping, error)

	UpdateURL(ctx context.Context, owner OwnerID, code Code, longURL string) (*Mapping, error)
	Delete(ctx context.Context, owner OwnerID, code Code) error
	ListByOwner(ctx context.Context, owner OwnerID) ([]Mapping, error)
}

// OwnerDirectory resolves owners and their tier.
type OwnerDirectory interface {
	GetOwner(ctx context.Context, id OwnerID) (*Owner, error)
}
