package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/serroba/shortlink/internal/metrics"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Allocator hands out codes from the shared pool.
type Allocator struct {
	store   Store
	width   int
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAllocator creates an allocator encoding emergency codes at the given width.
func NewAllocator(store Store, width int, m *metrics.Metrics, logger *zap.Logger) *Allocator {
	return &Allocator{
		store:   store,
		width:   width,
		metrics: m,
		logger:  logger,
	}
}

// Allocate pops a pre-generated code. When the pool is empty it derives one from the
// same counter used by batch reservation, so both paths can never emit the same id.
func (a *Allocator) Allocate(ctx context.Context) (shortener.Code, error) {
	code, err := a.store.PopCode(ctx)
	if err == nil {
		return shortener.Code(code), nil
	}

	if !errors.Is(err, ErrPoolEmpty) {
		return "", fmt.Errorf("%w: pop code: %v", shortener.ErrUnavailable, err)
	}

	a.logger.Error("key pool is empty, deriving code on demand")
	a.metrics.EmergencyAllocations.Inc()

	id, err := a.store.Reserve(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("%w: reserve emergency id: %v", shortener.ErrUnavailable, err)
	}

	code = Encode(id, a.width)

	a.logger.Warn("emergency code issued", zap.String("code", code), zap.Uint64("id", id))

	return shortener.Code(code), nil
}
