package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	domainEvents "github.com/payflow/payflow/internal/domain/events"
)

var _ domainEvents.DomainEvent = (*remoteEvent)(nil)

// remoteEvent is a domain event decoded from the bus. It carries the
// original payload verbatim so fan-out consumers see exactly what the
// producer published.
type remoteEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
	partnerID   uuid.UUID
	payload     map[string]interface{}
}

func remoteEventFromMessage(m eventMessage) (*remoteEvent, error) {
	eventID, err := uuid.Parse(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("invalid event id: %w", err)
	}
	aggregateID, err := uuid.Parse(m.AggregateID)
	if err != nil {
		return nil, fmt.Errorf("invalid aggregate id: %w", err)
	}
	partnerID, err := uuid.Parse(m.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid partner id: %w", err)
	}
	if m.Payload == nil {
		m.Payload = make(map[string]interface{})
	}
	return &remoteEvent{
		eventID:     eventID,
		eventType:   m.EventType,
		occurredAt:  m.OccurredAt,
		aggregateID: aggregateID,
		partnerID:   partnerID,
		payload:     m.Payload,
	}, nil
}

func (e *remoteEvent) EventID() uuid.UUID              { return e.eventID }
func (e *remoteEvent) EventType() string               { return e.eventType }
func (e *remoteEvent) OccurredAt() time.Time           { return e.occurredAt }
func (e *remoteEvent) AggregateID() uuid.UUID          { return e.aggregateID }
func (e *remoteEvent) PartnerID() uuid.UUID            { return e.partnerID }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }
