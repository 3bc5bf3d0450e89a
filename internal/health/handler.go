// Package health reports the reachability of the stores the service depends on.
package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	healthy        = "healthy"
	unhealthy      = "unhealthy"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// PoolSizer reports how many codes are left in the shared key pool.
type PoolSizer interface {
	PoolSize(ctx context.Context) (int64, error)
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PostgresChecker adapts pgxpool.Pool to Checker interface.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

func (p *PostgresChecker) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Handler handles health check operations.
type Handler struct {
	redis    Checker
	postgres Checker
	pool     PoolSizer
}

// NewHandler creates a new health handler.
func NewHandler(redis, postgres Checker, pool PoolSizer) *Handler {
	return &Handler{redis: redis, postgres: postgres, pool: pool}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status   string `json:"status"`
		Redis    string `json:"redis"`
		Postgres string `json:"postgres"`
		KeyPool  *int64 `doc:"Codes left in the shared pool" json:"keyPool,omitempty"`
	}
}

// Check performs a health check of the application and its dependencies.
// Either store failing reports the service as degraded.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = statusOK
	resp.Body.Redis = h.probe(ctx, h.redis, &resp.Body.Status)
	resp.Body.Postgres = h.probe(ctx, h.postgres, &resp.Body.Status)

	if resp.Body.Redis == healthy {
		if size, err := h.pool.PoolSize(ctx); err == nil {
			resp.Body.KeyPool = &size
		}
	}

	return resp, nil
}

func (h *Handler) probe(ctx context.Context, c Checker, status *string) string {
	if err := c.Ping(ctx); err != nil {
		*status = statusDegraded

		return unhealthy
	}

	return healthy
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Get(api, "/health", h.Check)
}
