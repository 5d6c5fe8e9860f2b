// Package entities - Transaction is one logical money movement: a credit,
// a debit, or a transfer. Once completed or failed it is immutable; only
// gateway reconciliation data may be attached afterwards.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeCredit   TransactionType = "credit"
	TransactionTypeDebit    TransactionType = "debit"
	TransactionTypeTransfer TransactionType = "transfer"
)

// IsValid checks if the transaction type is valid.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeCredit, TransactionTypeDebit, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

// TransactionStatus represents the current state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsValid checks if the transaction status is valid.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further status transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// Transaction is a single logical money movement.
//
// State machine:
//
//	pending ──► completed
//	   │
//	   ├──────► failed
//	   └──────► cancelled
type Transaction struct {
	id             uuid.UUID
	partnerID      uuid.UUID
	txType         TransactionType
	status         TransactionStatus
	amount         valueobjects.Money
	fromWalletID   *uuid.UUID
	toWalletID     *uuid.UUID
	idempotencyKey string // globally unique when present
	description    string
	failureReason  string

	// Gateway reconciliation (set by the webhook processor)
	gateway              string
	gatewayTransactionID string

	createdAt time.Time
	updatedAt time.Time
}

// NewTransaction creates a pending transaction. Wallet bindings are
// validated against the type: transfers need both sides, credits a
// destination, debits a source.
func NewTransaction(
	partnerID uuid.UUID,
	txType TransactionType,
	amount valueobjects.Money,
	fromWalletID, toWalletID *uuid.UUID,
	idempotencyKey, description string,
) (*Transaction, error) {
	if !txType.IsValid() {
		return nil, errors.ValidationError{Field: "type", Message: "invalid transaction type"}
	}
	if !amount.IsPositive() {
		return nil, errors.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	switch txType {
	case TransactionTypeCredit:
		if toWalletID == nil {
			return nil, errors.ValidationError{Field: "to_wallet_id", Message: "credit requires a destination wallet"}
		}
	case TransactionTypeDebit:
		if fromWalletID == nil {
			return nil, errors.ValidationError{Field: "from_wallet_id", Message: "debit requires a source wallet"}
		}
	case TransactionTypeTransfer:
		if fromWalletID == nil || toWalletID == nil {
			return nil, errors.ValidationError{Field: "wallet_ids", Message: "transfer requires both wallets"}
		}
		if *fromWalletID == *toWalletID {
			return nil, errors.ValidationError{Field: "wallet_ids", Message: "cannot transfer to the same wallet"}
		}
	}
	now := time.Now().UTC()
	return &Transaction{
		id:             uuid.New(),
		partnerID:      partnerID,
		txType:         txType,
		status:         TransactionStatusPending,
		amount:         amount,
		fromWalletID:   fromWalletID,
		toWalletID:     toWalletID,
		idempotencyKey: idempotencyKey,
		description:    description,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructTransaction hydrates a Transaction from stored data.
func ReconstructTransaction(
	id, partnerID uuid.UUID,
	txType TransactionType,
	status TransactionStatus,
	amount valueobjects.Money,
	fromWalletID, toWalletID *uuid.UUID,
	idempotencyKey, description, failureReason string,
	gateway, gatewayTransactionID string,
	createdAt, updatedAt time.Time,
) *Transaction {
	return &Transaction{
		id:                   id,
		partnerID:            partnerID,
		txType:               txType,
		status:               status,
		amount:               amount,
		fromWalletID:         fromWalletID,
		toWalletID:           toWalletID,
		idempotencyKey:       idempotencyKey,
		description:          description,
		failureReason:        failureReason,
		gateway:              gateway,
		gatewayTransactionID: gatewayTransactionID,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

func (t *Transaction) ID() uuid.UUID                 { return t.id }
func (t *Transaction) PartnerID() uuid.UUID          { return t.partnerID }
func (t *Transaction) Type() TransactionType         { return t.txType }
func (t *Transaction) Status() TransactionStatus     { return t.status }
func (t *Transaction) Amount() valueobjects.Money    { return t.amount }
func (t *Transaction) FromWalletID() *uuid.UUID      { return t.fromWalletID }
func (t *Transaction) ToWalletID() *uuid.UUID        { return t.toWalletID }
func (t *Transaction) IdempotencyKey() string        { return t.idempotencyKey }
func (t *Transaction) Description() string           { return t.description }
func (t *Transaction) FailureReason() string         { return t.failureReason }
func (t *Transaction) Gateway() string               { return t.gateway }
func (t *Transaction) GatewayTransactionID() string  { return t.gatewayTransactionID }
func (t *Transaction) CreatedAt() time.Time          { return t.createdAt }
func (t *Transaction) UpdatedAt() time.Time          { return t.updatedAt }

// Currency is a convenience accessor for the amount's currency.
func (t *Transaction) Currency() valueobjects.Currency {
	return t.amount.Currency()
}

// Complete transitions pending → completed.
func (t *Transaction) Complete() error {
	if t.status.IsTerminal() {
		return errors.NewBusinessRuleViolation(
			"TRANSACTION_TERMINAL",
			"transaction is already terminal",
			map[string]interface{}{"status": string(t.status)},
		)
	}
	t.status = TransactionStatusCompleted
	t.updatedAt = time.Now().UTC()
	return nil
}

// Fail transitions pending → failed with a reason.
func (t *Transaction) Fail(reason string) error {
	if t.status.IsTerminal() {
		return errors.NewBusinessRuleViolation(
			"TRANSACTION_TERMINAL",
			"transaction is already terminal",
			map[string]interface{}{"status": string(t.status)},
		)
	}
	t.status = TransactionStatusFailed
	t.failureReason = reason
	t.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions pending → cancelled.
func (t *Transaction) Cancel() error {
	if t.status.IsTerminal() {
		return errors.NewBusinessRuleViolation(
			"TRANSACTION_TERMINAL",
			"transaction is already terminal",
			map[string]interface{}{"status": string(t.status)},
		)
	}
	t.status = TransactionStatusCancelled
	t.updatedAt = time.Now().UTC()
	return nil
}

// AttachGateway records the external processor reference after
// webhook reconciliation.
func (t *Transaction) AttachGateway(gateway, gatewayTransactionID string) {
	t.gateway = gateway
	t.gatewayTransactionID = gatewayTransactionID
	t.updatedAt = time.Now().UTC()
}
