// Package entities - LedgerEntry is one side of a double-entry post. Rows
// are append-only: nothing ever mutates or deletes an entry, and the
// balance field records the wallet balance immediately after the entry.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// IsValid checks if the entry type is valid.
func (t EntryType) IsValid() bool {
	return t == EntryTypeDebit || t == EntryTypeCredit
}

// LedgerEntry records one side of a balanced money movement.
type LedgerEntry struct {
	id            uuid.UUID
	transactionID uuid.UUID
	walletID      uuid.UUID
	entryType     EntryType
	amount        valueobjects.Money
	balance       valueobjects.Money // wallet balance AFTER this entry
	description   string
	createdAt     time.Time
}

// NewLedgerEntry creates an entry with its running balance, computed by the
// ledger engine under the wallet row lock.
func NewLedgerEntry(
	transactionID, walletID uuid.UUID,
	entryType EntryType,
	amount, balance valueobjects.Money,
	description string,
) (*LedgerEntry, error) {
	if !entryType.IsValid() {
		return nil, errors.ValidationError{Field: "type", Message: "invalid entry type"}
	}
	if !amount.IsPositive() {
		return nil, errors.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if !amount.Currency().Equals(balance.Currency()) {
		return nil, errors.ErrCurrencyMismatch
	}
	return &LedgerEntry{
		id:            uuid.New(),
		transactionID: transactionID,
		walletID:      walletID,
		entryType:     entryType,
		amount:        amount,
		balance:       balance,
		description:   description,
		createdAt:     time.Now().UTC(),
	}, nil
}

// ReconstructLedgerEntry hydrates a LedgerEntry from stored data.
func ReconstructLedgerEntry(
	id, transactionID, walletID uuid.UUID,
	entryType EntryType,
	amount, balance valueobjects.Money,
	description string,
	createdAt time.Time,
) *LedgerEntry {
	return &LedgerEntry{
		id:            id,
		transactionID: transactionID,
		walletID:      walletID,
		entryType:     entryType,
		amount:        amount,
		balance:       balance,
		description:   description,
		createdAt:     createdAt,
	}
}

func (e *LedgerEntry) ID() uuid.UUID               { return e.id }
func (e *LedgerEntry) TransactionID() uuid.UUID    { return e.transactionID }
func (e *LedgerEntry) WalletID() uuid.UUID         { return e.walletID }
func (e *LedgerEntry) Type() EntryType             { return e.entryType }
func (e *LedgerEntry) Amount() valueobjects.Money  { return e.amount }
func (e *LedgerEntry) Balance() valueobjects.Money { return e.balance }
func (e *LedgerEntry) Description() string         { return e.description }
func (e *LedgerEntry) CreatedAt() time.Time        { return e.createdAt }

// Currency is a convenience accessor for the entry's currency.
func (e *LedgerEntry) Currency() valueobjects.Currency {
	return e.amount.Currency()
}
