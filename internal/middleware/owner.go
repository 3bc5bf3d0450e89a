package middleware

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/shortener"
)

// OwnerHeader carries the owner identity established by the upstream gateway.
const OwnerHeader = "X-Owner-ID"

// Owner is a middleware that adds the caller's owner ID to the request context.
// A missing or malformed header leaves the request anonymous.
func Owner(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		id, err := strconv.ParseInt(ctx.Header(OwnerHeader), 10, 64)
		if err == nil && id > 0 {
			newCtx := handlers.ContextWithOwner(ctx.Context(), shortener.OwnerID(id))
			ctx = huma.WithContext(ctx, newCtx)
		}

		next(ctx)
	}
}
