package store

import (
	"context"
	"sync"

	"github.com/serroba/shortlink/internal/keys"
)

// MemoryKeyPool is an in-memory implementation of keys.Store.
type MemoryKeyPool struct {
	mu      sync.Mutex
	codes   map[string]struct{}
	counter uint64
}

// NewMemoryKeyPool creates an empty pool with the counter at zero.
func NewMemoryKeyPool() *MemoryKeyPool {
	return &MemoryKeyPool{
		codes: make(map[string]struct{}),
	}
}

func (m *MemoryKeyPool) PopCode(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for code := range m.codes {
		delete(m.codes, code)

		return code, nil
	}

	return "", keys.ErrPoolEmpty
}

func (m *MemoryKeyPool) AddCodes(_ context.Context, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, code := range codes {
		m.codes[code] = struct{}{}
	}

	return nil
}

func (m *MemoryKeyPool) PoolSize(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.codes)), nil
}

func (m *MemoryKeyPool) Reserve(_ context.Context, n int64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.counter
	m.counter += uint64(n)

	return start, nil
}

// Counter returns the next unreserved id.
func (m *MemoryKeyPool) Counter() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counter
}

// Contains reports whether code is currently in the pool.
func (m *MemoryKeyPool) Contains(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.codes[code]

	return ok
}

var _ keys.Store = (*MemoryKeyPool)(nil)
