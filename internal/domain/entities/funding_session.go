// Package entities - FundingSession ties an external payment intent to the
// wallet it will credit. Sessions are short-lived; a background sweep
// expires any session still "created" past its deadline.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// FundingSessionStatus represents the state of a funding session.
type FundingSessionStatus string

const (
	FundingSessionStatusCreated   FundingSessionStatus = "created"
	FundingSessionStatusActive    FundingSessionStatus = "active"
	FundingSessionStatusCompleted FundingSessionStatus = "completed"
	FundingSessionStatusFailed    FundingSessionStatus = "failed"
	FundingSessionStatusExpired   FundingSessionStatus = "expired"
)

// IsValid checks if the funding session status is valid.
func (s FundingSessionStatus) IsValid() bool {
	switch s {
	case FundingSessionStatusCreated, FundingSessionStatusActive,
		FundingSessionStatusCompleted, FundingSessionStatusFailed, FundingSessionStatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the session can no longer change state.
func (s FundingSessionStatus) IsTerminal() bool {
	return s == FundingSessionStatusCompleted || s == FundingSessionStatusFailed || s == FundingSessionStatusExpired
}

// DefaultFundingSessionTTL is how long a session may sit unpaid.
const DefaultFundingSessionTTL = 30 * time.Minute

// FundingSession is a pending funding of one wallet.
//
// State machine:
//
//	created ──► active ──► completed | failed
//	   │           │
//	   └───────────┴──(past expiresAt)──► expired
type FundingSession struct {
	id              uuid.UUID
	walletID        uuid.UUID
	partnerID       uuid.UUID
	gateway         string
	paymentIntentID string
	amount          valueobjects.Money
	status          FundingSessionStatus
	expiresAt       time.Time
	successURL      string
	cancelURL       string
	metadata        map[string]string
	createdAt       time.Time
	updatedAt       time.Time
}

// NewFundingSession creates a session in the created state.
func NewFundingSession(
	walletID, partnerID uuid.UUID,
	gateway, paymentIntentID string,
	amount valueobjects.Money,
	successURL, cancelURL string,
	metadata map[string]string,
	now time.Time,
) (*FundingSession, error) {
	if gateway == "" {
		return nil, errors.ValidationError{Field: "gateway", Message: "gateway is required"}
	}
	if paymentIntentID == "" {
		return nil, errors.ValidationError{Field: "payment_intent_id", Message: "payment intent id is required"}
	}
	if !amount.IsPositive() {
		return nil, errors.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}
	now = now.UTC()
	return &FundingSession{
		id:              uuid.New(),
		walletID:        walletID,
		partnerID:       partnerID,
		gateway:         gateway,
		paymentIntentID: paymentIntentID,
		amount:          amount,
		status:          FundingSessionStatusCreated,
		expiresAt:       now.Add(DefaultFundingSessionTTL),
		successURL:      successURL,
		cancelURL:       cancelURL,
		metadata:        metadata,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructFundingSession hydrates a FundingSession from stored data.
func ReconstructFundingSession(
	id, walletID, partnerID uuid.UUID,
	gateway, paymentIntentID string,
	amount valueobjects.Money,
	status FundingSessionStatus,
	expiresAt time.Time,
	successURL, cancelURL string,
	metadata map[string]string,
	createdAt, updatedAt time.Time,
) *FundingSession {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &FundingSession{
		id:              id,
		walletID:        walletID,
		partnerID:       partnerID,
		gateway:         gateway,
		paymentIntentID: paymentIntentID,
		amount:          amount,
		status:          status,
		expiresAt:       expiresAt,
		successURL:      successURL,
		cancelURL:       cancelURL,
		metadata:        metadata,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

func (s *FundingSession) ID() uuid.UUID                 { return s.id }
func (s *FundingSession) WalletID() uuid.UUID           { return s.walletID }
func (s *FundingSession) PartnerID() uuid.UUID          { return s.partnerID }
func (s *FundingSession) Gateway() string               { return s.gateway }
func (s *FundingSession) PaymentIntentID() string       { return s.paymentIntentID }
func (s *FundingSession) Amount() valueobjects.Money    { return s.amount }
func (s *FundingSession) Status() FundingSessionStatus  { return s.status }
func (s *FundingSession) ExpiresAt() time.Time          { return s.expiresAt }
func (s *FundingSession) SuccessURL() string            { return s.successURL }
func (s *FundingSession) CancelURL() string             { return s.cancelURL }
func (s *FundingSession) Metadata() map[string]string   { return s.metadata }
func (s *FundingSession) CreatedAt() time.Time          { return s.createdAt }
func (s *FundingSession) UpdatedAt() time.Time          { return s.updatedAt }

// IsExpired reports whether the session is past its deadline and still
// non-terminal.
func (s *FundingSession) IsExpired(now time.Time) bool {
	return !s.status.IsTerminal() && now.After(s.expiresAt)
}

// Activate marks the session as picked up by the payer.
func (s *FundingSession) Activate() error {
	if s.status != FundingSessionStatusCreated {
		return errors.NewBusinessRuleViolation(
			"INVALID_SESSION_TRANSITION",
			"only created sessions can become active",
			map[string]interface{}{"status": string(s.status)},
		)
	}
	s.status = FundingSessionStatusActive
	s.updatedAt = time.Now().UTC()
	return nil
}

// Complete marks the session as successfully paid and credited.
func (s *FundingSession) Complete() error {
	if s.status.IsTerminal() {
		return errors.ErrSessionTerminal
	}
	s.status = FundingSessionStatusCompleted
	s.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records a payment or crediting failure.
func (s *FundingSession) MarkFailed() error {
	if s.status.IsTerminal() {
		return errors.ErrSessionTerminal
	}
	s.status = FundingSessionStatusFailed
	s.updatedAt = time.Now().UTC()
	return nil
}

// Expire moves a non-terminal session to expired.
func (s *FundingSession) Expire() error {
	if s.status.IsTerminal() {
		return errors.ErrSessionTerminal
	}
	s.status = FundingSessionStatusExpired
	s.updatedAt = time.Now().UTC()
	return nil
}
