// Package ports defines the interfaces the application layer depends on.
// The infrastructure layer provides the implementations (PostgreSQL for
// production, in-memory for tests).
//
// Pattern: Repository + Ports & Adapters (hexagonal architecture).
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// PartnerRepository stores B2B tenants.
type PartnerRepository interface {
	// Save upserts a partner, including its settings map.
	Save(ctx context.Context, partner *entities.Partner) error

	// FindByID loads a partner. Returns ErrEntityNotFound if absent.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Partner, error)

	// FindByIDForUpdate loads the partner row under a row-level lock. Must
	// be called inside a unit of work. The lock serializes concurrent
	// clearing-wallet creation for the partner.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Partner, error)

	// List returns partners with pagination, newest first.
	List(ctx context.Context, offset, limit int) ([]*entities.Partner, error)
}

// APIKeyRepository stores hashed partner credentials.
type APIKeyRepository interface {
	Save(ctx context.Context, key *entities.APIKey) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.APIKey, error)

	// FindByHash looks a key up by the SHA-256 hex digest of its secret.
	// The hash column carries a unique constraint.
	FindByHash(ctx context.Context, hash string) (*entities.APIKey, error)

	ListByPartner(ctx context.Context, partnerID uuid.UUID) ([]*entities.APIKey, error)

	// DeactivateProductionKeys revokes every production key of a partner.
	// Called when a partner is rejected.
	DeactivateProductionKeys(ctx context.Context, partnerID uuid.UUID) error

	// UpdateLastUsed is best-effort bookkeeping; callers log and ignore
	// failures.
	UpdateLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error
}

// WalletRepository stores partner-scoped accounts.
type WalletRepository interface {
	Save(ctx context.Context, wallet *entities.Wallet) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// FindByIDForUpdate loads the wallet row under a row-level lock.
	// Must be called inside a unit of work; the lock is held until commit.
	// Callers lock multiple wallets in ascending id order to avoid deadlock.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// FindByExternalID resolves a partner-supplied wallet id. The pair
	// (partnerID, externalWalletID) is unique.
	FindByExternalID(ctx context.Context, partnerID uuid.UUID, externalWalletID string) (*entities.Wallet, error)

	// ListByPartner returns the partner's wallets, clearing wallets excluded.
	ListByPartner(ctx context.Context, partnerID uuid.UUID, offset, limit int) ([]*entities.Wallet, error)
}

// TransactionFilter narrows wallet transaction listings.
type TransactionFilter struct {
	Type   *entities.TransactionType
	Status *entities.TransactionStatus
}

// TransactionRepository stores logical money movements.
type TransactionRepository interface {
	// Save inserts a transaction. A unique-constraint violation on the
	// idempotency key surfaces as ErrDuplicateIdempotencyKey so the
	// orchestrator can recover by returning the winner's record.
	Save(ctx context.Context, tx *entities.Transaction) error

	// Update persists a status transition and gateway attachment.
	Update(ctx context.Context, tx *entities.Transaction) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)

	// FindByIdempotencyKey returns ErrEntityNotFound when the key is unused.
	FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error)

	// ListByWallet returns transactions touching the wallet (either side),
	// newest first.
	ListByWallet(ctx context.Context, walletID uuid.UUID, filter TransactionFilter, offset, limit int) ([]*entities.Transaction, error)
}

// LedgerRepository stores append-only double-entry rows.
type LedgerRepository interface {
	// Insert appends one entry. Entries are never updated or deleted.
	Insert(ctx context.Context, entry *entities.LedgerEntry) error

	// LatestBalance returns the balance field of the wallet's most recent
	// entry, or zero in the given currency if the wallet has no entries.
	// Callers hold the wallet row lock across this read and the following
	// Insert; that pairing is what makes the running balance correct.
	LatestBalance(ctx context.Context, walletID uuid.UUID, currency valueobjects.Currency) (valueobjects.Money, error)

	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error)

	ListByWallet(ctx context.Context, walletID uuid.UUID, offset, limit int) ([]*entities.LedgerEntry, error)
}

// GatewayTransactionRepository stores processor-side event mirrors.
type GatewayTransactionRepository interface {
	// InsertIfAbsent stores the record unless one with the same gateway
	// transaction id exists. Returns false when the event was already seen,
	// which is how duplicate webhook deliveries become no-ops.
	InsertIfAbsent(ctx context.Context, gt *entities.GatewayTransaction) (bool, error)

	// Delete removes a dedup record. The webhook processor compensates with
	// it when handling fails after InsertIfAbsent won, so the gateway's
	// retry of the same event is processed instead of swallowed.
	Delete(ctx context.Context, gatewayTransactionID string) error

	FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*entities.GatewayTransaction, error)
}

// FundingSessionRepository stores pending wallet fundings.
type FundingSessionRepository interface {
	Save(ctx context.Context, session *entities.FundingSession) error

	Update(ctx context.Context, session *entities.FundingSession) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.FundingSession, error)

	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entities.FundingSession, error)

	// ExpireStale marks created sessions whose deadline has passed as
	// expired and returns how many were updated.
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Repositories bundles the full set for composition roots and tests.
type Repositories struct {
	Partners            PartnerRepository
	APIKeys             APIKeyRepository
	Wallets             WalletRepository
	Transactions        TransactionRepository
	Ledger              LedgerRepository
	GatewayTransactions GatewayTransactionRepository
	FundingSessions     FundingSessionRepository
}
