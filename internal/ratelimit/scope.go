package ratelimit

import "github.com/danielgtaylor/huma/v2"

// Scope groups operations that share a rate limit budget.
type Scope string

const (
	// ScopeShorten covers code issuance, the only path that drains the key pool.
	ScopeShorten Scope = "shorten"
	// ScopeRedirect covers code resolution.
	ScopeRedirect Scope = "redirect"
	// ScopeManage covers reading, updating and deleting an owner's mappings.
	ScopeManage Scope = "manage"
)

// MetadataKey is the operation metadata key holding the operation's Scope.
const MetadataKey = "rateLimitScope"

// ScopeOf returns the scope attached to the operation, if any.
func ScopeOf(op *huma.Operation) (Scope, bool) {
	if op == nil || op.Metadata == nil {
		return "", false
	}

	scope, ok := op.Metadata[MetadataKey].(Scope)

	return scope, ok && scope != ""
}
