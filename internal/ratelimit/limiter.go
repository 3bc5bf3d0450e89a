package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// LimitConfig allows at most Max requests per Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits enforced on it. Scopes without limits are not limited.
type Policy map[Scope][]LimitConfig

// DefaultPolicy returns the limits applied per client.
func DefaultPolicy() Policy {
	return Policy{
		ScopeShorten: {
			{Window: time.Minute, Max: 10},
			{Window: time.Hour, Max: 100},
			{Window: 24 * time.Hour, Max: 500},
		},
		ScopeRedirect: {
			{Window: time.Minute, Max: 1000},
		},
		ScopeManage: {
			{Window: time.Minute, Max: 60},
		},
	}
}

// LimitExceeded describes the limit a request ran into.
type LimitExceeded struct {
	Scope  Scope
	Config LimitConfig
	Count  int64
}

// Limiter enforces a Policy with a sliding window per client, scope and window length.
type Limiter struct {
	store  Store
	policy Policy
}

// NewLimiter creates a Limiter.
func NewLimiter(store Store, policy Policy) *Limiter {
	return &Limiter{
		store:  store,
		policy: policy,
	}
}

// Allow records a request from client in scope. It returns nil when the request
// fits every limit of the scope.
func (l *Limiter) Allow(ctx context.Context, client string, scope Scope) (*LimitExceeded, error) {
	for _, limit := range l.policy[scope] {
		count, err := l.store.Record(ctx, key(client, scope, limit), limit.Window)
		if err != nil {
			return nil, fmt.Errorf("record %s request: %w", scope, err)
		}

		if count > limit.Max {
			return &LimitExceeded{Scope: scope, Config: limit, Count: count}, nil
		}
	}

	return nil, nil
}

func key(client string, scope Scope, limit LimitConfig) string {
	return fmt.Sprintf("%s:%s:%d", scope, client, limit.Window.Milliseconds())
}
