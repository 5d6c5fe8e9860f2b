// Package ports - EventPublisher decouples the orchestrator from webhook
// fan-out. The production implementation publishes to NATS; the webhook
// notifier consumes from there and posts to partner URLs.
package ports

import (
	"context"

	"github.com/payflow/payflow/internal/domain/events"
)

// EventPublisher publishes internal domain events.
//
// Delivery is at-least-once; consumers must be idempotent. Publish failures
// after a committed transaction are logged, never propagated to the caller —
// money movement does not fail because fan-out did.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// EventHandler consumes one domain event.
type EventHandler func(ctx context.Context, event events.DomainEvent) error

// EventSubscriber registers handlers for event types.
type EventSubscriber interface {
	Subscribe(eventType string, handler EventHandler) error
}
