package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/shortener"
)

type ownerHashKey struct {
	owner shortener.OwnerID
	hash  shortener.URLHash
}

type expiring[T any] struct {
	value   T
	expires time.Time
}

// MemoryEntryStore is an in-memory implementation of cache.EntryStore.
type MemoryEntryStore struct {
	mu      sync.Mutex
	entries map[shortener.Code]expiring[cache.Entry]
	owners  map[ownerHashKey]expiring[shortener.Code]
	now     func() time.Time
}

// NewMemoryEntryStore creates an empty entry store using the wall clock for TTLs.
func NewMemoryEntryStore() *MemoryEntryStore {
	return NewMemoryEntryStoreWithClock(time.Now)
}

// NewMemoryEntryStoreWithClock creates an empty entry store using now for TTLs.
func NewMemoryEntryStoreWithClock(now func() time.Time) *MemoryEntryStore {
	return &MemoryEntryStore{
		entries: make(map[shortener.Code]expiring[cache.Entry]),
		owners:  make(map[ownerHashKey]expiring[shortener.Code]),
		now:     now,
	}
}

func (m *MemoryEntryStore) Get(_ context.Context, code shortener.Code) (*cache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.entries[code]
	if !ok || !m.now().Before(item.expires) {
		delete(m.entries, code)

		return nil, shortener.ErrNotFound
	}

	entry := item.value

	return &entry, nil
}

func (m *MemoryEntryStore) Set(_ context.Context, entry cache.Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[entry.Code] = expiring[cache.Entry]{value: entry, expires: m.now().Add(ttl)}

	return nil
}

func (m *MemoryEntryStore) Delete(_ context.Context, code shortener.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, code)

	return nil
}

func (m *MemoryEntryStore) GetOwnerURL(
	_ context.Context, owner shortener.OwnerID, hash shortener.URLHash,
) (shortener.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerHashKey{owner, hash}

	item, ok := m.owners[key]
	if !ok || !m.now().Before(item.expires) {
		delete(m.owners, key)

		return "", shortener.ErrNotFound
	}

	return item.value, nil
}

func (m *MemoryEntryStore) ClaimOwnerURL(
	_ context.Context, owner shortener.OwnerID, hash shortener.URLHash, code shortener.Code, ttl time.Duration,
) (shortener.Code, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerHashKey{owner, hash}
	now := m.now()

	if item, ok := m.owners[key]; ok && now.Before(item.expires) {
		return item.value, item.value == code, nil
	}

	m.owners[key] = expiring[shortener.Code]{value: code, expires: now.Add(ttl)}

	return code, true, nil
}

func (m *MemoryEntryStore) DeleteOwnerURL(_ context.Context, owner shortener.OwnerID, hash shortener.URLHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.owners, ownerHashKey{owner, hash})

	return nil
}

var _ cache.EntryStore = (*MemoryEntryStore)(nil)
