package keys

import (
	"context"
	"fmt"
	"time"

	"github.com/serroba/shortlink/internal/metrics"
	"go.uber.org/zap"
)

// Replenisher periodically refills the pool from the counter when it runs low.
// Only the instance holding the lock replenishes in a given cycle.
type Replenisher struct {
	store   Store
	lock    Lock
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReplenisher creates a replenisher. Call Start to run it periodically.
func NewReplenisher(store Store, lock Lock, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Replenisher {
	return &Replenisher{
		store:   store,
		lock:    lock,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Replenish runs a single cycle and returns the number of codes added.
// Losing the lock race is not an error: another instance is replenishing.
func (r *Replenisher) Replenish(ctx context.Context) (int, error) {
	acquired, err := r.lock.TryAcquire(ctx, r.cfg.LockWait, r.cfg.LockLease)
	if err != nil {
		r.metrics.ReplenishRuns.WithLabelValues(metrics.ReplenishFailed).Inc()

		return 0, fmt.Errorf("acquire replenish lock: %w", err)
	}

	if !acquired {
		r.metrics.ReplenishRuns.WithLabelValues(metrics.ReplenishLocked).Inc()
		r.logger.Info("replenish lock held elsewhere, skipping cycle")

		return 0, nil
	}

	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to release replenish lock", zap.Error(err))
		}
	}()

	added, err := r.fill(ctx)
	if err != nil {
		r.metrics.ReplenishRuns.WithLabelValues(metrics.ReplenishFailed).Inc()

		return 0, err
	}

	if added == 0 {
		r.metrics.ReplenishRuns.WithLabelValues(metrics.ReplenishSkipped).Inc()
	} else {
		r.metrics.ReplenishRuns.WithLabelValues(metrics.ReplenishFilled).Inc()
	}

	return added, nil
}

func (r *Replenisher) fill(ctx context.Context) (int, error) {
	size, err := r.store.PoolSize(ctx)
	if err != nil {
		return 0, fmt.Errorf("read pool size: %w", err)
	}

	r.metrics.PoolSize.Set(float64(size))

	if size >= r.cfg.LowWaterMark {
		r.logger.Debug("key pool above low-water mark", zap.Int64("size", size))

		return 0, nil
	}

	start, err := r.store.Reserve(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("reserve id block: %w", err)
	}

	codes := make([]string, r.cfg.BatchSize)
	for i := range codes {
		codes[i] = Encode(start+uint64(i), r.cfg.CodeWidth)
	}

	if err := r.store.AddCodes(ctx, codes); err != nil {
		// The reserved block is abandoned; the counter has moved past it for good.
		r.logger.Error("failed to insert reserved codes, block skipped",
			zap.Uint64("start", start),
			zap.Int64("count", r.cfg.BatchSize),
			zap.Error(err),
		)

		return 0, fmt.Errorf("add codes: %w", err)
	}

	r.metrics.CodesGenerated.Add(float64(len(codes)))
	r.metrics.PoolSize.Set(float64(size + int64(len(codes))))

	r.logger.Info("key pool replenished",
		zap.Int64("previousSize", size),
		zap.Int("added", len(codes)),
		zap.Uint64("start", start),
	)

	return len(codes), nil
}

// Start runs a cycle immediately and then on every interval until Shutdown.
func (r *Replenisher) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	return nil
}

func (r *Replenisher) loop(ctx context.Context) {
	defer close(r.done)

	r.runCycle(ctx)

	ticker := time.NewTicker(r.cfg.ReplenishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

func (r *Replenisher) runCycle(ctx context.Context) {
	if _, err := r.Replenish(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("replenish cycle failed", zap.Error(err))
	}
}

// Shutdown stops the periodic task and waits for an in-flight cycle to finish.
func (r *Replenisher) Shutdown() error {
	if r.cancel == nil {
		return nil
	}

	r.cancel()
	<-r.done

	return nil
}
