package shortener

import "time"

// Code represents a short URL code.
type Code string

// URLHash represents a hash of a long URL, used to index owner submissions.
type URLHash string

// OwnerID identifies the account that owns a mapping.
type OwnerID int64

// Tier decides the retention policy applied to an owner's mappings.
type Tier string

const (
	// TierDefault mappings expire after the configured retention window.
	TierDefault Tier = "default"
	// TierPrivileged mappings never expire.
	TierPrivileged Tier = "privileged"
)

// Owner is an authenticated account able to create mappings.
type Owner struct {
	ID   OwnerID
	Tier Tier
}

// Mapping is the canonical code to URL record.
type Mapping struct {
	ID         int64
	Code       Code
	LongURL    string
	OwnerID    OwnerID
	CreatedAt  time.Time
	ClickCount int64
	ExpiresAt  *time.Time // nil means the mapping never expires
}

// Expired reports whether the mapping is past its expiry at the given instant.
func (m *Mapping) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// Status describes the outcome of a shorten request.
type Status string

const (
	StatusCreated                  Status = "created"
	StatusAlreadyExists            Status = "already-exists"
	StatusPersistencePendingFailed Status = "persistence-pending-failed"
)

// Result is returned by Service.Shorten.
type Result struct {
	Code       Code
	LongURL    string
	ClickCount int64
	ExpiresAt  *time.Time
	Status     Status
}
