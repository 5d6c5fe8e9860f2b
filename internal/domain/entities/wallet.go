// Package entities - Wallet is a partner-scoped account holding a balance
// in exactly one currency. The balance itself lives in the ledger: a wallet
// row never stores an amount, the latest ledger entry does.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// WalletStatus represents the operational status of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

// IsValid checks if the wallet status is valid.
func (s WalletStatus) IsValid() bool {
	switch s {
	case WalletStatusActive, WalletStatusSuspended, WalletStatusClosed:
		return true
	default:
		return false
	}
}

// Wallet is a partner-scoped account. Partner and currency are fixed for
// the wallet's whole life.
type Wallet struct {
	id               uuid.UUID
	partnerID        uuid.UUID
	externalUserID   *string
	externalWalletID *string // unique per partner when present
	name             string
	currency         valueobjects.Currency
	status           WalletStatus
	isClearing       bool // internal double-entry counterparty, hidden from the partner API
	createdAt        time.Time
	updatedAt        time.Time
}

// NewWallet creates an active wallet for a partner.
func NewWallet(partnerID uuid.UUID, name string, currency valueobjects.Currency, externalUserID, externalWalletID *string) (*Wallet, error) {
	if partnerID == uuid.Nil {
		return nil, errors.ValidationError{Field: "partner_id", Message: "partner id is required"}
	}
	if currency.IsZero() {
		return nil, errors.ValidationError{Field: "currency", Message: "currency is required"}
	}
	now := time.Now().UTC()
	return &Wallet{
		id:               uuid.New(),
		partnerID:        partnerID,
		externalUserID:   externalUserID,
		externalWalletID: externalWalletID,
		name:             name,
		currency:         currency,
		status:           WalletStatusActive,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// NewClearingWallet creates the internal counterparty wallet the orchestrator
// books single-sided credits and debits against. One exists per
// (partner, currency); it never appears in partner-facing listings.
func NewClearingWallet(partnerID uuid.UUID, currency valueobjects.Currency) (*Wallet, error) {
	w, err := NewWallet(partnerID, "clearing:"+currency.Code(), currency, nil, nil)
	if err != nil {
		return nil, err
	}
	w.isClearing = true
	return w, nil
}

// ReconstructWallet hydrates a Wallet from stored data.
func ReconstructWallet(
	id, partnerID uuid.UUID,
	externalUserID, externalWalletID *string,
	name string,
	currency valueobjects.Currency,
	status WalletStatus,
	isClearing bool,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		id:               id,
		partnerID:        partnerID,
		externalUserID:   externalUserID,
		externalWalletID: externalWalletID,
		name:             name,
		currency:         currency,
		status:           status,
		isClearing:       isClearing,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

func (w *Wallet) ID() uuid.UUID                    { return w.id }
func (w *Wallet) PartnerID() uuid.UUID             { return w.partnerID }
func (w *Wallet) ExternalUserID() *string          { return w.externalUserID }
func (w *Wallet) ExternalWalletID() *string        { return w.externalWalletID }
func (w *Wallet) Name() string                     { return w.name }
func (w *Wallet) Currency() valueobjects.Currency  { return w.currency }
func (w *Wallet) Status() WalletStatus             { return w.status }
func (w *Wallet) IsClearing() bool                 { return w.isClearing }
func (w *Wallet) CreatedAt() time.Time             { return w.createdAt }
func (w *Wallet) UpdatedAt() time.Time             { return w.updatedAt }

// IsActive reports whether the wallet can take part in transactions.
func (w *Wallet) IsActive() bool {
	return w.status == WalletStatusActive
}

// BelongsTo reports whether the wallet is in the given partner's scope.
func (w *Wallet) BelongsTo(partnerID uuid.UUID) bool {
	return w.partnerID == partnerID
}

// Suspend temporarily disables the wallet.
func (w *Wallet) Suspend() error {
	if w.status == WalletStatusClosed {
		return errors.NewBusinessRuleViolation(
			"WALLET_CLOSED", "cannot suspend a closed wallet", nil)
	}
	w.status = WalletStatusSuspended
	w.updatedAt = time.Now().UTC()
	return nil
}

// Activate lifts a suspension.
func (w *Wallet) Activate() error {
	if w.status == WalletStatusClosed {
		return errors.NewBusinessRuleViolation(
			"WALLET_CLOSED", "cannot activate a closed wallet", nil)
	}
	w.status = WalletStatusActive
	w.updatedAt = time.Now().UTC()
	return nil
}

// Close permanently closes the wallet.
func (w *Wallet) Close() {
	w.status = WalletStatusClosed
	w.updatedAt = time.Now().UTC()
}
