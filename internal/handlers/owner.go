package handlers

import (
	"context"

	"github.com/serroba/shortlink/internal/shortener"
)

type ownerKey struct{}

// ContextWithOwner adds the authenticated owner to the context.
func ContextWithOwner(ctx context.Context, owner shortener.OwnerID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the authenticated owner, or zero when the request carries none.
func OwnerFromContext(ctx context.Context) shortener.OwnerID {
	if v, ok := ctx.Value(ownerKey{}).(shortener.OwnerID); ok {
		return v
	}

	return 0
}
