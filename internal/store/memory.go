package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

type ownerURLKey struct {
	owner   shortener.OwnerID
	longURL string
}

// MemoryStore is an in-memory implementation of shortener.Repository and
// shortener.OwnerDirectory. Owners must be registered with UpsertOwner before
// their mappings can be inserted.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	mappings map[shortener.Code]*shortener.Mapping
	byOwner  map[ownerURLKey]shortener.Code
	owners   map[shortener.OwnerID]shortener.Owner
}

// NewMemoryStore creates a new in-memory canonical store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mappings: make(map[shortener.Code]*shortener.Mapping),
		byOwner:  make(map[ownerURLKey]shortener.Code),
		owners:   make(map[shortener.OwnerID]shortener.Owner),
	}
}

// UpsertOwner creates or re-tiers an owner.
func (m *MemoryStore) UpsertOwner(_ context.Context, owner shortener.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.owners[owner.ID] = owner

	return nil
}

func (m *MemoryStore) GetOwner(_ context.Context, id shortener.OwnerID) (*shortener.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.owners[id]
	if !ok {
		return nil, shortener.ErrOwnerNotFound
	}

	return &owner, nil
}

func (m *MemoryStore) Insert(_ context.Context, mapping *shortener.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owners[mapping.OwnerID]; !ok {
		return shortener.ErrOwnerNotFound
	}

	if _, ok := m.mappings[mapping.Code]; ok {
		return shortener.ErrConflict
	}

	m.nextID++

	stored := *mapping
	stored.ID = m.nextID
	m.mappings[stored.Code] = &stored
	m.byOwner[ownerURLKey{stored.OwnerID, stored.LongURL}] = stored.Code

	mapping.ID = stored.ID

	return nil
}

func (m *MemoryStore) GetByCode(_ context.Context, code shortener.Code) (*shortener.Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.mappings[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	cp := *mapping

	return &cp, nil
}

func (m *MemoryStore) GetByOwnerURL(
	_ context.Context, owner shortener.OwnerID, longURL string,
) (*shortener.Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.byOwner[ownerURLKey{owner, longURL}]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	cp := *m.mappings[code]

	return &cp, nil
}

func (m *MemoryStore) IncrementClicks(_ context.Context, code shortener.Code, now time.Time) (*shortener.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[code]
	if !ok || mapping.Expired(now) {
		return nil, shortener.ErrNotFound
	}

	mapping.ClickCount++
	cp := *mapping

	return &cp, nil
}

func (m *MemoryStore) UpdateURL(
	_ context.Context, owner shortener.OwnerID, code shortener.Code, longURL string,
) (*shortener.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[code]
	if !ok || mapping.OwnerID != owner {
		return nil, shortener.ErrNotFound
	}

	m.unindex(mapping)
	mapping.LongURL = longURL
	m.byOwner[ownerURLKey{owner, longURL}] = code

	cp := *mapping

	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, owner shortener.OwnerID, code shortener.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[code]
	if !ok || mapping.OwnerID != owner {
		return shortener.ErrNotFound
	}

	m.unindex(mapping)
	delete(m.mappings, code)

	return nil
}

// unindex drops the owner-URL entry only while it still points at mapping.
func (m *MemoryStore) unindex(mapping *shortener.Mapping) {
	key := ownerURLKey{mapping.OwnerID, mapping.LongURL}
	if m.byOwner[key] == mapping.Code {
		delete(m.byOwner, key)
	}
}

func (m *MemoryStore) ListByOwner(_ context.Context, owner shortener.OwnerID) ([]shortener.Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []shortener.Mapping

	for _, mapping := range m.mappings {
		if mapping.OwnerID == owner {
			out = append(out, *mapping)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

// Len returns the number of stored mappings.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.mappings)
}

var (
	_ shortener.Repository     = (*MemoryStore)(nil)
	_ shortener.OwnerDirectory = (*MemoryStore)(nil)
)
