package keys

import (
	"context"
	"errors"
	"time"
)

// ErrPoolEmpty is returned by Store.PopCode when no pre-generated code is left.
var ErrPoolEmpty = errors.New("key pool is empty")

// Store holds the shared pool of issuable codes and the counter they derive from.
// Every method must be atomic at the store level since many instances share it.
type Store interface {
	// PopCode removes and returns one code. A code is returned to at most one caller.
	PopCode(ctx context.Context) (string, error)

	// AddCodes inserts codes into the pool.
	AddCodes(ctx context.Context, codes []string) error

	// PoolSize returns the number of codes currently available.
	PoolSize(ctx context.Context) (int64, error)

	// Reserve atomically advances the counter by n and returns the first id of the
	// reserved block [start, start+n). The counter never moves backwards.
	Reserve(ctx context.Context, n int64) (start uint64, err error)
}

// Lock is a cluster-wide mutual exclusion primitive with a lease.
type Lock interface {
	// TryAcquire waits at most wait for the lock. The lease bounds how long a crashed
	// holder can keep it.
	TryAcquire(ctx context.Context, wait, lease time.Duration) (bool, error)
	Release(ctx context.Context) error
}
