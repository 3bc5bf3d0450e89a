package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter returns a Huma middleware that applies the limiter to operations
// carrying a rate limit scope. Authenticated callers are limited per owner,
// anonymous ones per client IP. A failing limiter store lets requests through.
func RateLimiter(
	api huma.API,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		scope, ok := ratelimit.ScopeOf(ctx.Operation())
		if !ok {
			next(ctx)

			return
		}

		exceeded, err := limiter.Allow(ctx.Context(), clientKey(ctx), scope)
		if err != nil {
			logger.Warn("rate limit check failed, allowing request",
				zap.String("scope", string(scope)), zap.Error(err))
			next(ctx)

			return
		}

		if exceeded != nil {
			logger.Warn("rate limit exceeded",
				zap.String("path", ctx.Operation().Path),
				zap.String("method", ctx.Method()),
				zap.String("scope", string(exceeded.Scope)),
				zap.Int64("count", exceeded.Count),
				zap.Int64("max", exceeded.Config.Max),
				zap.Duration("window", exceeded.Config.Window),
			)

			ctx.SetHeader("Retry-After", strconv.Itoa(int(exceeded.Config.Window.Seconds())))
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests,
				fmt.Sprintf("rate limit exceeded: %d requests per %s", exceeded.Config.Max, exceeded.Config.Window))

			return
		}

		next(ctx)
	}
}

func clientKey(ctx huma.Context) string {
	if owner := handlers.OwnerFromContext(ctx.Context()); owner > 0 {
		return fmt.Sprintf("owner:%d", owner)
	}

	return "ip:" + clientIP(ctx)
}

// clientIP extracts the client IP from the request, considering proxies.
func clientIP(ctx huma.Context) string {
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	host := ctx.RemoteAddr()

	ip, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}

	return ip
}
