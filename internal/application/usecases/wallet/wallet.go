// Package wallet - partner-facing wallet operations: create, lookup, list,
// balance, and transaction history. All reads enforce partner scope; a
// wallet belonging to another partner is ErrWrongPartnerScope, never data.
package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/application/ledger"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// Service bundles wallet reads and creation. Money movement lives in the
// transaction orchestrator, never here.
type Service struct {
	wallets      ports.WalletRepository
	transactions ports.TransactionRepository
	engine       *ledger.Engine
}

// NewService creates the wallet service.
func NewService(
	wallets ports.WalletRepository,
	transactions ports.TransactionRepository,
	engine *ledger.Engine,
) *Service {
	return &Service{wallets: wallets, transactions: transactions, engine: engine}
}

// CreateInput carries the partner's wallet creation request.
type CreateInput struct {
	Name             string
	Currency         valueobjects.Currency
	ExternalUserID   *string
	ExternalWalletID *string
}

// Create makes a new active wallet in the partner's scope. A duplicate
// (partner, externalWalletID) pair surfaces as ErrEntityAlreadyExists.
func (s *Service) Create(ctx context.Context, partnerID uuid.UUID, in CreateInput) (*entities.Wallet, error) {
	w, err := entities.NewWallet(partnerID, in.Name, in.Currency, in.ExternalUserID, in.ExternalWalletID)
	if err != nil {
		return nil, err
	}
	if err := s.wallets.Save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Get loads a wallet and enforces partner scope. Clearing wallets are
// internal and reported as not found.
func (s *Service) Get(ctx context.Context, partnerID, walletID uuid.UUID) (*entities.Wallet, error) {
	w, err := s.wallets.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.IsClearing() {
		return nil, errors.ErrEntityNotFound
	}
	if !w.BelongsTo(partnerID) {
		return nil, errors.ErrWrongPartnerScope
	}
	return w, nil
}

// GetByExternalID resolves a partner-supplied wallet id.
func (s *Service) GetByExternalID(ctx context.Context, partnerID uuid.UUID, externalWalletID string) (*entities.Wallet, error) {
	return s.wallets.FindByExternalID(ctx, partnerID, externalWalletID)
}

// List returns the partner's wallets, clearing wallets excluded.
func (s *Service) List(ctx context.Context, partnerID uuid.UUID, offset, limit int) ([]*entities.Wallet, error) {
	return s.wallets.ListByPartner(ctx, partnerID, offset, limit)
}

// Balance reads the wallet's current balance from the ledger: the balance
// field of the latest entry, or zero if the wallet has never moved money.
func (s *Service) Balance(ctx context.Context, partnerID, walletID uuid.UUID) (valueobjects.Money, error) {
	w, err := s.Get(ctx, partnerID, walletID)
	if err != nil {
		return valueobjects.Money{}, err
	}
	balance, err := s.engine.Balance(ctx, w)
	if err != nil {
		return valueobjects.Money{}, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// Transactions lists the wallet's history, newest first.
func (s *Service) Transactions(ctx context.Context, partnerID, walletID uuid.UUID, filter ports.TransactionFilter, offset, limit int) ([]*entities.Transaction, error) {
	if _, err := s.Get(ctx, partnerID, walletID); err != nil {
		return nil, err
	}
	return s.transactions.ListByWallet(ctx, walletID, filter, offset, limit)
}

// GetTransaction loads one transaction and enforces partner scope.
func (s *Service) GetTransaction(ctx context.Context, partnerID, transactionID uuid.UUID) (*entities.Transaction, error) {
	tx, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.PartnerID() != partnerID {
		return nil, errors.ErrWrongPartnerScope
	}
	return tx, nil
}
