package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/metrics"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// ErrMalformedEvent is returned for events missing a code, URL or owner.
var ErrMalformedEvent = errors.New("malformed persistence event")

// Handler applies persistence events to the canonical store. Applying the same
// event twice leaves exactly one row.
type Handler struct {
	repo    shortener.Repository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler creates a persistence handler.
func NewHandler(repo shortener.Repository, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle inserts the mapping unless it already exists. Errors marked
// messaging.Permanent must not be redelivered; all others are transient.
func (h *Handler) Handle(ctx context.Context, event *Event) error {
	if event.ShortCode == "" || event.LongURL == "" || event.OwnerID == 0 {
		h.count(metrics.ConsumeDropped)

		return messaging.Permanent(fmt.Errorf("%w: %+v", ErrMalformedEvent, *event))
	}

	log := h.logger.With(zap.String("code", string(event.ShortCode)))

	existing, err := h.repo.GetByCode(ctx, event.ShortCode)
	if err == nil {
		h.duplicate(log, existing, event)

		return nil
	}

	if !errors.Is(err, shortener.ErrNotFound) {
		h.count(metrics.ConsumeRetried)

		return fmt.Errorf("lookup %s: %w", event.ShortCode, err)
	}

	mapping := &shortener.Mapping{
		Code:      event.ShortCode,
		LongURL:   event.LongURL,
		OwnerID:   event.OwnerID,
		CreatedAt: h.now().UTC(),
		ExpiresAt: event.ExpiresAt,
	}

	err = h.repo.Insert(ctx, mapping)

	switch {
	case err == nil:
		h.count(metrics.ConsumeInserted)
		log.Info("mapping persisted", zap.Int64("id", mapping.ID))

		return nil
	case errors.Is(err, shortener.ErrConflict):
		// Lost a race with a concurrent delivery of the same event.
		h.count(metrics.ConsumeDuplicate)
		log.Info("mapping already persisted by concurrent delivery")

		return nil
	case errors.Is(err, shortener.ErrOwnerNotFound):
		h.count(metrics.ConsumeDropped)

		return messaging.Permanent(fmt.Errorf("insert %s: %w", event.ShortCode, err))
	default:
		h.count(metrics.ConsumeRetried)

		return fmt.Errorf("insert %s: %w", event.ShortCode, err)
	}
}

func (h *Handler) duplicate(log *zap.Logger, existing *shortener.Mapping, event *Event) {
	h.count(metrics.ConsumeDuplicate)

	if existing.LongURL != event.LongURL || existing.OwnerID != event.OwnerID {
		log.Warn("duplicate event disagrees with canonical mapping",
			zap.String("canonicalURL", existing.LongURL),
			zap.String("eventURL", event.LongURL),
			zap.Int64("canonicalOwner", int64(existing.OwnerID)),
			zap.Int64("eventOwner", int64(event.OwnerID)),
		)

		return
	}

	log.Info("duplicate event ignored")
}

func (h *Handler) count(outcome string) {
	h.metrics.ConsumedEvents.WithLabelValues(outcome).Inc()
}
