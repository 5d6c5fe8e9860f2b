// Package events defines domain events that represent significant business
// occurrences. Events are immutable facts about what happened in the past.
// The webhook notifier subscribes to them to fan out partner webhooks.
package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID // ID of the entity that raised this event
	PartnerID() uuid.UUID   // tenant whose webhook receives the fan-out
	Payload() map[string]interface{}
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
	partnerID   uuid.UUID
}

func newBaseEvent(eventType string, aggregateID, partnerID uuid.UUID) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New(),
		eventType:   eventType,
		occurredAt:  time.Now().UTC(),
		aggregateID: aggregateID,
		partnerID:   partnerID,
	}
}

func (e BaseEvent) EventID() uuid.UUID     { return e.eventID }
func (e BaseEvent) EventType() string      { return e.eventType }
func (e BaseEvent) OccurredAt() time.Time  { return e.occurredAt }
func (e BaseEvent) AggregateID() uuid.UUID { return e.aggregateID }
func (e BaseEvent) PartnerID() uuid.UUID   { return e.partnerID }

// Event types.
const (
	EventTypeTransactionCompleted   = "transaction.completed"
	EventTypeTransactionFailed      = "transaction.failed"
	EventTypeFundingSessionCreated  = "funding_session.created"
	EventTypeFundingSessionComplete = "funding_session.completed"
	EventTypeFundingSessionFailed   = "funding_session.failed"
	EventTypePayoutInitiated        = "payout.initiated"
)

// TransactionCompleted is raised when a transaction commits its ledger post.
type TransactionCompleted struct {
	BaseEvent
	TransactionID uuid.UUID
	Type          string
	Amount        string
	Currency      string
}

// NewTransactionCompleted creates a TransactionCompleted event.
func NewTransactionCompleted(transactionID, partnerID uuid.UUID, txType, amount, currency string) *TransactionCompleted {
	return &TransactionCompleted{
		BaseEvent:     newBaseEvent(EventTypeTransactionCompleted, transactionID, partnerID),
		TransactionID: transactionID,
		Type:          txType,
		Amount:        amount,
		Currency:      currency,
	}
}

// Payload returns the partner-visible event body.
func (e *TransactionCompleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"transactionId": e.TransactionID.String(),
		"type":          e.Type,
		"amount":        e.Amount,
		"currency":      e.Currency,
	}
}

// TransactionFailed is raised when a ledger post is rejected.
type TransactionFailed struct {
	BaseEvent
	TransactionID uuid.UUID
	Type          string
	Amount        string
	Currency      string
	Reason        string
}

// NewTransactionFailed creates a TransactionFailed event.
func NewTransactionFailed(transactionID, partnerID uuid.UUID, txType, amount, currency, reason string) *TransactionFailed {
	return &TransactionFailed{
		BaseEvent:     newBaseEvent(EventTypeTransactionFailed, transactionID, partnerID),
		TransactionID: transactionID,
		Type:          txType,
		Amount:        amount,
		Currency:      currency,
		Reason:        reason,
	}
}

// Payload returns the partner-visible event body.
func (e *TransactionFailed) Payload() map[string]interface{} {
	return map[string]interface{}{
		"transactionId": e.TransactionID.String(),
		"type":          e.Type,
		"amount":        e.Amount,
		"currency":      e.Currency,
		"reason":        e.Reason,
	}
}

// FundingSessionCompleted is raised when a funding session credits its wallet.
type FundingSessionCompleted struct {
	BaseEvent
	SessionID uuid.UUID
	WalletID  uuid.UUID
	Amount    string
	Currency  string
}

// NewFundingSessionCompleted creates a FundingSessionCompleted event.
func NewFundingSessionCompleted(sessionID, walletID, partnerID uuid.UUID, amount, currency string) *FundingSessionCompleted {
	return &FundingSessionCompleted{
		BaseEvent: newBaseEvent(EventTypeFundingSessionComplete, sessionID, partnerID),
		SessionID: sessionID,
		WalletID:  walletID,
		Amount:    amount,
		Currency:  currency,
	}
}

// Payload returns the partner-visible event body.
func (e *FundingSessionCompleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sessionId": e.SessionID.String(),
		"walletId":  e.WalletID.String(),
		"amount":    e.Amount,
		"currency":  e.Currency,
	}
}

// FundingSessionFailed is raised when the processor reports a failed payment.
type FundingSessionFailed struct {
	BaseEvent
	SessionID uuid.UUID
	WalletID  uuid.UUID
	Reason    string
}

// NewFundingSessionFailed creates a FundingSessionFailed event.
func NewFundingSessionFailed(sessionID, walletID, partnerID uuid.UUID, reason string) *FundingSessionFailed {
	return &FundingSessionFailed{
		BaseEvent: newBaseEvent(EventTypeFundingSessionFailed, sessionID, partnerID),
		SessionID: sessionID,
		WalletID:  walletID,
		Reason:    reason,
	}
}

// Payload returns the partner-visible event body.
func (e *FundingSessionFailed) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sessionId": e.SessionID.String(),
		"walletId":  e.WalletID.String(),
		"reason":    e.Reason,
	}
}

// PayoutInitiated is raised when an external payout is handed to the gateway.
type PayoutInitiated struct {
	BaseEvent
	TransactionID uuid.UUID
	Destination   string
	Amount        string
	Currency      string
}

// NewPayoutInitiated creates a PayoutInitiated event.
func NewPayoutInitiated(transactionID, partnerID uuid.UUID, destination, amount, currency string) *PayoutInitiated {
	return &PayoutInitiated{
		BaseEvent:     newBaseEvent(EventTypePayoutInitiated, transactionID, partnerID),
		TransactionID: transactionID,
		Destination:   destination,
		Amount:        amount,
		Currency:      currency,
	}
}

// Payload returns the partner-visible event body.
func (e *PayoutInitiated) Payload() map[string]interface{} {
	return map[string]interface{}{
		"transactionId": e.TransactionID.String(),
		"destination":   e.Destination,
		"amount":        e.Amount,
		"currency":      e.Currency,
	}
}
