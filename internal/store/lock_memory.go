package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/keys"
)

const memoryLockPoll = 10 * time.Millisecond

// MemoryLocker is a process-local lock registry. Handles obtained from the same
// locker contend with each other the way separate instances contend on Redis.
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[string]memoryLease
}

type memoryLease struct {
	holder  *MemoryLock
	expires time.Time
}

// NewMemoryLocker creates an empty registry.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		holders: make(map[string]memoryLease),
	}
}

// Lock returns a new handle on the named lock.
func (l *MemoryLocker) Lock(name string) *MemoryLock {
	return &MemoryLock{locker: l, name: name}
}

func (l *MemoryLocker) tryAcquire(lock *MemoryLock, lease time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if cur, ok := l.holders[lock.name]; ok && now.Before(cur.expires) {
		return false
	}

	l.holders[lock.name] = memoryLease{holder: lock, expires: now.Add(lease)}

	return true
}

func (l *MemoryLocker) release(lock *MemoryLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.holders[lock.name]; ok && cur.holder == lock {
		delete(l.holders, lock.name)
	}
}

// MemoryLock is one holder's handle on a MemoryLocker lock.
type MemoryLock struct {
	locker *MemoryLocker
	name   string
}

func (m *MemoryLock) TryAcquire(ctx context.Context, wait, lease time.Duration) (bool, error) {
	deadline := time.Now().Add(wait)

	for {
		if m.locker.tryAcquire(m, lease) {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(min(memoryLockPoll, remaining)):
		}
	}
}

func (m *MemoryLock) Release(_ context.Context) error {
	m.locker.release(m)

	return nil
}

var _ keys.Lock = (*MemoryLock)(nil)
