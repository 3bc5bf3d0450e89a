package container

import (
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/keys"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/metrics"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/orchestrator"
	"github.com/serroba/shortlink/internal/persistence"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/store"
	"go.uber.org/zap"
)

// RepositoryPackage provides the canonical store.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*store.PostgresStore, error) {
		return store.NewPostgresStore(do.MustInvoke[*PostgresPool](i).Pool), nil
	})
}

// KeysPackage provides the shared key pool, the allocator and the pool replenisher.
func KeysPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*store.RedisKeyPool, error) {
		return store.NewRedisKeyPool(do.MustInvoke[*RedisClient](i).Client), nil
	})

	do.Provide(injector, func(i *do.Injector) (*keys.Allocator, error) {
		opts := do.MustInvoke[*Options](i)

		return keys.NewAllocator(
			do.MustInvoke[*store.RedisKeyPool](i),
			opts.CodeWidth,
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*keys.Replenisher, error) {
		lock, err := store.NewRedisLock(do.MustInvoke[*RedisClient](i).Client, store.ReplenishLockName)
		if err != nil {
			return nil, err
		}

		return keys.NewReplenisher(
			do.MustInvoke[*store.RedisKeyPool](i),
			lock,
			do.MustInvoke[*Options](i).KeysConfig(),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// CachePackage provides the redirect cache.
func CachePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*cache.RedirectCache, error) {
		return cache.New(
			store.NewRedisEntryStore(do.MustInvoke[*RedisClient](i).Client),
			do.MustInvoke[*store.PostgresStore](i),
			do.MustInvoke[*Options](i).CacheTTL(),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// PublisherGroupPackage provides the Redis stream publisher of the durability channel.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     do.MustInvoke[*RedisClient](i).Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i)))
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (*store.RedisRecoveryLog, error) {
		return store.NewRedisRecoveryLog(do.MustInvoke[*RedisClient](i).Client, do.MustInvoke[*zap.Logger](i)), nil
	})
}

// ServicePackage provides the shortening service.
func ServicePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*orchestrator.Service, error) {
		repo := do.MustInvoke[*store.PostgresStore](i)
		publishers := do.MustInvoke[*messaging.PublisherGroup](i)

		return orchestrator.New(orchestrator.Deps{
			Allocator: do.MustInvoke[*keys.Allocator](i),
			Repo:      repo,
			Owners:    repo,
			Cache:     do.MustInvoke[*cache.RedirectCache](i),
			Publish:   persistence.NewPublishFunc(publishers.Publisher()),
			Recovery:  do.MustInvoke[*store.RedisRecoveryLog](i),
			Metrics:   do.MustInvoke[*metrics.Metrics](i),
			Logger:    do.MustInvoke[*zap.Logger](i),
		}, do.MustInvoke[*Options](i).ServiceConfig()), nil
	})
}

// HTTPPackage provides the router and the API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Handle("/metrics", do.MustInvoke[*metrics.Metrics](i).Handler())

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		redisClient := do.MustInvoke[*RedisClient](i).Client

		api := humachi.New(do.MustInvoke[*chi.Mux](i), huma.DefaultConfig("Shortlink", "1.0.0"))
		api.UseMiddleware(middleware.Owner(api))

		if opts.RateLimit {
			limiter := ratelimit.NewLimiter(store.NewRateLimitRedisStore(redisClient), ratelimit.DefaultPolicy())
			api.UseMiddleware(middleware.RateLimiter(api, limiter, logger))
		}

		handlers.RegisterRoutes(api, handlers.NewURLHandler(
			do.MustInvoke[*orchestrator.Service](i),
			do.MustInvoke[*cache.RedirectCache](i),
			opts.PublicBaseURL(),
			logger,
		))

		health.RegisterRoutes(api, health.NewHandler(
			health.NewRedisChecker(redisClient),
			health.NewPostgresChecker(do.MustInvoke[*PostgresPool](i).Pool),
			do.MustInvoke[*store.RedisKeyPool](i),
		))

		return api, nil
	})
}

// ConsumerGroupPackage provides the persistence consumer reading the durability channel.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        do.MustInvoke[*RedisClient](i).Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: opts.ConsumerGroup,
			Consumer:      "shortlink-" + uuid.NewString(),
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, err
		}

		handler := persistence.NewHandler(
			do.MustInvoke[*store.PostgresStore](i),
			do.MustInvoke[*metrics.Metrics](i),
			logger,
		)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(persistence.NewConsumer(subscriber, handler, logger))

		return group, nil
	})
}
