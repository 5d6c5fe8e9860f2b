// Package events implements the event bus ports: a NATS-backed publisher
// and subscriber for production and an in-memory bus for tests and
// single-process deployments.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/payflow/payflow/internal/application/ports"
	domainEvents "github.com/payflow/payflow/internal/domain/events"
)

var (
	_ ports.EventPublisher  = (*NATSBus)(nil)
	_ ports.EventSubscriber = (*NATSBus)(nil)
)

// eventMessage is the wire form of a domain event on the bus.
type eventMessage struct {
	EventID     string                 `json:"eventId"`
	EventType   string                 `json:"eventType"`
	OccurredAt  time.Time              `json:"occurredAt"`
	AggregateID string                 `json:"aggregateId"`
	PartnerID   string                 `json:"partnerId"`
	Payload     map[string]interface{} `json:"payload"`
}

// NATSBus publishes and subscribes to domain events over NATS. Subjects are
// "<prefix>.<event type>".
type NATSBus struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSBus connects to the NATS server.
func NewNATSBus(url, subjectPrefix string, logger *slog.Logger) (*NATSBus, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSBus{conn: conn, prefix: subjectPrefix, logger: logger}, nil
}

// Publish sends the event to its type's subject.
func (b *NATSBus) Publish(_ context.Context, event domainEvents.DomainEvent) error {
	data, err := json.Marshal(eventMessage{
		EventID:     event.EventID().String(),
		EventType:   event.EventType(),
		OccurredAt:  event.OccurredAt(),
		AggregateID: event.AggregateID().String(),
		PartnerID:   event.PartnerID().String(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.conn.Publish(b.subject(event.EventType()), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe registers a handler for one event type. Decoded messages arrive
// as remoteEvent values implementing DomainEvent.
func (b *NATSBus) Subscribe(eventType string, handler ports.EventHandler) error {
	_, err := b.conn.Subscribe(b.subject(eventType), func(msg *nats.Msg) {
		var m eventMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			b.logger.Warn("dropping undecodable event", "subject", msg.Subject, "error", err)
			return
		}
		event, err := remoteEventFromMessage(m)
		if err != nil {
			b.logger.Warn("dropping malformed event", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(context.Background(), event); err != nil {
			b.logger.Warn("event handler failed", "event_type", m.EventType, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
	}
	return nil
}

// Close drains the connection.
func (b *NATSBus) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}

func (b *NATSBus) subject(eventType string) string {
	return b.prefix + "." + eventType
}
