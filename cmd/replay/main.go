// Command replay republishes persistence events that the server could not publish
// and parked in the recovery log.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/container"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/persistence"
	"github.com/serroba/shortlink/internal/store"
	"go.uber.org/zap"
)

func main() {
	opts, err := container.LoadEnvOptions()
	if err != nil {
		log.Fatalf("load options: %v", err)
	}

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PublisherGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	recovery := do.MustInvoke[*store.RedisRecoveryLog](injector)
	publish := persistence.NewPublishFunc(do.MustInvoke[*messaging.PublisherGroup](injector).Publisher())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pending, err := recovery.Len(ctx)
	if err != nil {
		logger.Fatal("failed to read recovery log", zap.Error(err))
	}

	logger.Info("replaying failed publishes", zap.Int64("pending", pending))

	replayed, err := recovery.Drain(ctx, func(ctx context.Context, entry store.FailedPublish) error {
		logger.Info("republishing event",
			zap.String("code", string(entry.Event.ShortCode)),
			zap.Time("failedAt", entry.FailedAt),
			zap.String("cause", entry.Error),
		)

		return publish(ctx, &entry.Event)
	})

	stop()

	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		logger.Error("shutdown error", zap.Error(shutdownErr))
	}

	if err != nil {
		logger.Fatal("replay stopped", zap.Int("replayed", replayed), zap.Error(err))
	}

	logger.Info("replay complete", zap.Int("replayed", replayed))
}
