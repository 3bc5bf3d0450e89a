// Package persistence carries newly issued mappings to the canonical store.
package persistence

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Topic is the durability channel for persistence events.
const Topic = "url.persistence"

// Event asks the consumer to make a mapping canonical.
type Event struct {
	ShortCode shortener.Code    `json:"shortCode"`
	LongURL   string            `json:"longUrl"`
	OwnerID   shortener.OwnerID `json:"ownerId"`
	ExpiresAt *time.Time        `json:"expiresAt"`
}

// NewPublishFunc creates the typed publisher for persistence events keyed by short code.
func NewPublishFunc(publisher message.Publisher) messaging.Publish[Event] {
	return messaging.NewPublishFunc[Event](publisher, Topic, func(e *Event) string {
		return string(e.ShortCode)
	})
}

// NewConsumer subscribes handler to the persistence topic.
func NewConsumer(subscriber message.Subscriber, handler *Handler, logger *zap.Logger) *messaging.Consumer[Event] {
	return messaging.NewConsumer[Event](subscriber, Topic, handler.Handle, logger)
}
