package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/payflow/payflow/internal/application/ports"
	domainEvents "github.com/payflow/payflow/internal/domain/events"
)

var (
	_ ports.EventPublisher  = (*MemoryBus)(nil)
	_ ports.EventSubscriber = (*MemoryBus)(nil)
)

// MemoryBus is a synchronous in-process bus. It backs single-process
// deployments without NATS and makes event flow deterministic in tests.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	logger   *slog.Logger
}

// NewMemoryBus creates an in-memory bus.
func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Publish invokes every handler registered for the event's type, in order.
// Handler errors are logged and do not stop later handlers.
func (b *MemoryBus) Publish(ctx context.Context, event domainEvents.DomainEvent) error {
	b.mu.RLock()
	handlers := append([]ports.EventHandler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Warn("event handler failed", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

// Subscribe registers a handler for one event type.
func (b *MemoryBus) Subscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}
