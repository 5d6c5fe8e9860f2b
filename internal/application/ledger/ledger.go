// Package ledger implements the double-entry append engine. Every balance
// in the system is defined by this package: a wallet's balance is the
// balance field of its most recent ledger entry, computed here under the
// wallet's row lock. No other code path computes balances.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// EntryInput describes one side of a post before balances are assigned.
type EntryInput struct {
	WalletID    uuid.UUID
	Type        entities.EntryType
	Amount      valueobjects.Money
	Description string
}

// Engine appends balanced entry sets. It must run inside a unit of work in
// which the affected wallet rows are already locked; the engine re-reads
// each wallet to validate existence and currency but relies on the caller's
// locks for serialization.
type Engine struct {
	wallets ports.WalletRepository
	entries ports.LedgerRepository
}

// NewEngine creates a ledger engine.
func NewEngine(wallets ports.WalletRepository, entries ports.LedgerRepository) *Engine {
	return &Engine{wallets: wallets, entries: entries}
}

// Append validates and writes a balanced entry set for one transaction.
//
// Preconditions checked here:
//   - at least one entry, Σ debits == Σ credits to the cent
//   - all entries share one currency
//   - every wallet exists and matches that currency
//
// For each entry in order, the running balance is read from the latest
// prior entry (zero if none) and the new balance computed and stored.
// A debit that would drive a balance below zero returns
// ErrInsufficientBalance before any further row is written; the enclosing
// transaction rolls the partial set back.
func (e *Engine) Append(ctx context.Context, transactionID uuid.UUID, inputs []EntryInput) ([]*entities.LedgerEntry, error) {
	if len(inputs) == 0 {
		return nil, errors.ErrUnbalancedEntries
	}

	currency := inputs[0].Amount.Currency()
	debits, credits := decimal.Zero, decimal.Zero
	for _, in := range inputs {
		if !in.Amount.IsPositive() {
			return nil, errors.ValidationError{Field: "amount", Message: "entry amount must be positive"}
		}
		if !in.Amount.Currency().Equals(currency) {
			return nil, errors.ErrCurrencyMismatch
		}
		switch in.Type {
		case entities.EntryTypeDebit:
			debits = debits.Add(in.Amount.Decimal())
		case entities.EntryTypeCredit:
			credits = credits.Add(in.Amount.Decimal())
		default:
			return nil, errors.ValidationError{Field: "type", Message: "invalid entry type"}
		}
	}
	if !debits.Equal(credits) {
		return nil, fmt.Errorf("%w: debits %s, credits %s",
			errors.ErrUnbalancedEntries, debits.StringFixed(2), credits.StringFixed(2))
	}

	appended := make([]*entities.LedgerEntry, 0, len(inputs))
	for _, in := range inputs {
		wallet, err := e.wallets.FindByID(ctx, in.WalletID)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %s", errors.ErrWalletNotFound, in.WalletID)
			}
			return nil, fmt.Errorf("failed to load wallet %s: %w", in.WalletID, err)
		}
		if !wallet.Currency().Equals(currency) {
			return nil, fmt.Errorf("%w: wallet %s holds %s, entry is %s",
				errors.ErrCurrencyMismatch, wallet.ID(), wallet.Currency().Code(), currency.Code())
		}

		prev, err := e.entries.LatestBalance(ctx, in.WalletID, currency)
		if err != nil {
			return nil, fmt.Errorf("failed to read balance of wallet %s: %w", in.WalletID, err)
		}

		var newBalance valueobjects.Money
		switch in.Type {
		case entities.EntryTypeCredit:
			newBalance, err = prev.Add(in.Amount)
		case entities.EntryTypeDebit:
			newBalance, err = prev.Subtract(in.Amount)
		}
		if err != nil {
			return nil, err
		}
		// Clearing wallets are the system-side counterparty and run
		// negative by construction; only partner wallets are floored
		// at zero.
		if newBalance.IsNegative() && !wallet.IsClearing() {
			return nil, fmt.Errorf("%w: wallet %s balance %s, debit %s",
				errors.ErrInsufficientBalance, in.WalletID, prev.String(), in.Amount.String())
		}

		entry, err := entities.NewLedgerEntry(transactionID, in.WalletID, in.Type, in.Amount, newBalance, in.Description)
		if err != nil {
			return nil, err
		}
		if err := e.entries.Insert(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		appended = append(appended, entry)
	}

	return appended, nil
}

// Balance reads the current balance of a wallet: the balance of its latest
// entry, or zero. Callers that go on to append must hold the row lock.
func (e *Engine) Balance(ctx context.Context, wallet *entities.Wallet) (valueobjects.Money, error) {
	return e.entries.LatestBalance(ctx, wallet.ID(), wallet.Currency())
}
