// Package memory implements the persistence ports on in-process maps. It
// exists for tests and local experimentation; semantics mirror the postgres
// package (idempotency uniqueness, insert-or-ignore dedup, scope filters)
// without row locks, so it is safe only under the single mutex it holds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// Store is the shared backing state for every in-memory repository.
type Store struct {
	mu sync.Mutex

	partners            map[uuid.UUID]*entities.Partner
	apiKeys             map[uuid.UUID]*entities.APIKey
	wallets             map[uuid.UUID]*entities.Wallet
	transactions        map[uuid.UUID]*entities.Transaction
	ledger              []*entities.LedgerEntry
	gatewayTransactions map[string]*entities.GatewayTransaction
	fundingSessions     map[uuid.UUID]*entities.FundingSession
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		partners:            make(map[uuid.UUID]*entities.Partner),
		apiKeys:             make(map[uuid.UUID]*entities.APIKey),
		wallets:             make(map[uuid.UUID]*entities.Wallet),
		transactions:        make(map[uuid.UUID]*entities.Transaction),
		gatewayTransactions: make(map[string]*entities.GatewayTransaction),
		fundingSessions:     make(map[uuid.UUID]*entities.FundingSession),
	}
}

// Repositories returns the full port bundle over this store.
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Partners:            &PartnerRepository{store: s},
		APIKeys:             &APIKeyRepository{store: s},
		Wallets:             &WalletRepository{store: s},
		Transactions:        &TransactionRepository{store: s},
		Ledger:              &LedgerRepository{store: s},
		GatewayTransactions: &GatewayTransactionRepository{store: s},
		FundingSessions:     &FundingSessionRepository{store: s},
	}
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork runs scopes one at a time under a mutex. There is no
// transaction to manage, so rollback semantics are not simulated, but the
// serialization stands in for the row locks postgres scopes rely on: a
// read-modify-write inside Execute cannot interleave with another scope.
type UnitOfWork struct {
	mu sync.Mutex
}

// NewUnitOfWork creates an in-memory unit of work.
func NewUnitOfWork() *UnitOfWork { return &UnitOfWork{} }

// Execute runs fn with the caller's context. Scopes never nest.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(context.Context) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fn(ctx)
}

// PartnerRepository is the in-memory ports.PartnerRepository.
type PartnerRepository struct{ store *Store }

func (r *PartnerRepository) Save(_ context.Context, partner *entities.Partner) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.partners[partner.ID()] = partner
	return nil
}

func (r *PartnerRepository) FindByID(_ context.Context, id uuid.UUID) (*entities.Partner, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.partners[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	return p, nil
}

func (r *PartnerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	return r.FindByID(ctx, id)
}

func (r *PartnerRepository) List(_ context.Context, offset, limit int) ([]*entities.Partner, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all := make([]*entities.Partner, 0, len(r.store.partners))
	for _, p := range r.store.partners {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })
	return paginate(all, offset, limit), nil
}

// APIKeyRepository is the in-memory ports.APIKeyRepository.
type APIKeyRepository struct{ store *Store }

func (r *APIKeyRepository) Save(_ context.Context, key *entities.APIKey) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, existing := range r.store.apiKeys {
		if id != key.ID() && existing.Hash() == key.Hash() {
			return errors.ErrEntityAlreadyExists
		}
	}
	r.store.apiKeys[key.ID()] = key
	return nil
}

func (r *APIKeyRepository) FindByID(_ context.Context, id uuid.UUID) (*entities.APIKey, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	k, ok := r.store.apiKeys[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	return k, nil
}

func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*entities.APIKey, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, k := range r.store.apiKeys {
		if k.Hash() == hash {
			return k, nil
		}
	}
	return nil, errors.ErrEntityNotFound
}

func (r *APIKeyRepository) ListByPartner(_ context.Context, partnerID uuid.UUID) ([]*entities.APIKey, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var keys []*entities.APIKey
	for _, k := range r.store.apiKeys {
		if k.PartnerID() == partnerID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt().After(keys[j].CreatedAt()) })
	return keys, nil
}

func (r *APIKeyRepository) DeactivateProductionKeys(_ context.Context, partnerID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, k := range r.store.apiKeys {
		if k.PartnerID() == partnerID && k.Environment() == entities.EnvironmentProduction {
			k.Deactivate()
		}
	}
	return nil
}

func (r *APIKeyRepository) UpdateLastUsed(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	k, ok := r.store.apiKeys[id]
	if !ok {
		return errors.ErrEntityNotFound
	}
	k.TouchLastUsed(usedAt)
	return nil
}

// WalletRepository is the in-memory ports.WalletRepository.
type WalletRepository struct{ store *Store }

func (r *WalletRepository) Save(_ context.Context, wallet *entities.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if ext := wallet.ExternalWalletID(); ext != nil {
		for id, existing := range r.store.wallets {
			if id == wallet.ID() {
				continue
			}
			if existing.PartnerID() == wallet.PartnerID() &&
				existing.ExternalWalletID() != nil && *existing.ExternalWalletID() == *ext {
				return errors.ErrEntityAlreadyExists
			}
		}
	}
	r.store.wallets[wallet.ID()] = wallet
	return nil
}

func (r *WalletRepository) FindByID(_ context.Context, id uuid.UUID) (*entities.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	return w, nil
}

func (r *WalletRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	return r.FindByID(ctx, id)
}

func (r *WalletRepository) FindByExternalID(_ context.Context, partnerID uuid.UUID, externalWalletID string) (*entities.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, w := range r.store.wallets {
		if w.PartnerID() == partnerID && w.ExternalWalletID() != nil && *w.ExternalWalletID() == externalWalletID {
			return w, nil
		}
	}
	return nil, errors.ErrEntityNotFound
}

func (r *WalletRepository) ListByPartner(_ context.Context, partnerID uuid.UUID, offset, limit int) ([]*entities.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var wallets []*entities.Wallet
	for _, w := range r.store.wallets {
		if w.PartnerID() == partnerID && !w.IsClearing() {
			wallets = append(wallets, w)
		}
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].CreatedAt().After(wallets[j].CreatedAt()) })
	return paginate(wallets, offset, limit), nil
}

// TransactionRepository is the in-memory ports.TransactionRepository.
type TransactionRepository struct{ store *Store }

// Save upserts by id. There is no rollback here, so a transaction row left
// behind by a rejected ledger post is simply overwritten when the
// orchestrator persists its terminal failure.
func (r *TransactionRepository) Save(_ context.Context, tx *entities.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if key := tx.IdempotencyKey(); key != "" {
		for id, existing := range r.store.transactions {
			if id != tx.ID() && existing.IdempotencyKey() == key {
				return errors.ErrDuplicateIdempotencyKey
			}
		}
	}
	r.store.transactions[tx.ID()] = tx
	return nil
}

func (r *TransactionRepository) Update(_ context.Context, tx *entities.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.transactions[tx.ID()]; !ok {
		return errors.ErrEntityNotFound
	}
	r.store.transactions[tx.ID()] = tx
	return nil
}

func (r *TransactionRepository) FindByID(_ context.Context, id uuid.UUID) (*entities.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx, ok := r.store.transactions[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	return tx, nil
}

func (r *TransactionRepository) FindByIdempotencyKey(_ context.Context, key string) (*entities.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, tx := range r.store.transactions {
		if tx.IdempotencyKey() == key {
			return tx, nil
		}
	}
	return nil, errors.ErrEntityNotFound
}

func (r *TransactionRepository) ListByWallet(_ context.Context, walletID uuid.UUID, filter ports.TransactionFilter, offset, limit int) ([]*entities.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var txs []*entities.Transaction
	for _, tx := range r.store.transactions {
		touches := (tx.FromWalletID() != nil && *tx.FromWalletID() == walletID) ||
			(tx.ToWalletID() != nil && *tx.ToWalletID() == walletID)
		if !touches {
			continue
		}
		if filter.Type != nil && tx.Type() != *filter.Type {
			continue
		}
		if filter.Status != nil && tx.Status() != *filter.Status {
			continue
		}
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt().After(txs[j].CreatedAt()) })
	return paginate(txs, offset, limit), nil
}

// LedgerRepository is the in-memory ports.LedgerRepository.
type LedgerRepository struct{ store *Store }

func (r *LedgerRepository) Insert(_ context.Context, entry *entities.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.ledger = append(r.store.ledger, entry)
	return nil
}

func (r *LedgerRepository) LatestBalance(_ context.Context, walletID uuid.UUID, currency valueobjects.Currency) (valueobjects.Money, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := len(r.store.ledger) - 1; i >= 0; i-- {
		if r.store.ledger[i].WalletID() == walletID {
			return r.store.ledger[i].Balance(), nil
		}
	}
	return valueobjects.Zero(currency), nil
}

func (r *LedgerRepository) ListByTransaction(_ context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var entries []*entities.LedgerEntry
	for _, e := range r.store.ledger {
		if e.TransactionID() == transactionID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (r *LedgerRepository) ListByWallet(_ context.Context, walletID uuid.UUID, offset, limit int) ([]*entities.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var entries []*entities.LedgerEntry
	for i := len(r.store.ledger) - 1; i >= 0; i-- {
		if r.store.ledger[i].WalletID() == walletID {
			entries = append(entries, r.store.ledger[i])
		}
	}
	return paginate(entries, offset, limit), nil
}

// GatewayTransactionRepository is the in-memory ports.GatewayTransactionRepository.
type GatewayTransactionRepository struct{ store *Store }

func (r *GatewayTransactionRepository) InsertIfAbsent(_ context.Context, gt *entities.GatewayTransaction) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.gatewayTransactions[gt.GatewayTransactionID()]; exists {
		return false, nil
	}
	r.store.gatewayTransactions[gt.GatewayTransactionID()] = gt
	return true, nil
}

func (r *GatewayTransactionRepository) Delete(_ context.Context, gatewayTransactionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.gatewayTransactions, gatewayTransactionID)
	return nil
}

func (r *GatewayTransactionRepository) FindByGatewayTransactionID(_ context.Context, gatewayTransactionID string) (*entities.GatewayTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	gt, ok := r.store.gatewayTransactions[gatewayTransactionID]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	return gt, nil
}

// FundingSessionRepository is the in-memory ports.FundingSessionRepository.
type FundingSessionRepository struct{ store *Store }

func (r *FundingSessionRepository) Save(_ context.Context, session *entities.FundingSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, existing := range r.store.fundingSessions {
		if id != session.ID() && existing.PaymentIntentID() == session.PaymentIntentID() {
			return errors.ErrEntityAlreadyExists
		}
	}
	r.store.fundingSessions[session.ID()] = session
	return nil
}

func (r *FundingSessionRepository) Update(_ context.Context, session *entities.FundingSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.fundingSessions[session.ID()]; !ok {
		return errors.ErrEntityNotFound
	}
	r.store.fundingSessions[session.ID()] = session
	return nil
}

func (r *FundingSessionRepository) FindByID(_ context.Context, id uuid.UUID) (*entities.FundingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.fundingSessions[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	return s, nil
}

func (r *FundingSessionRepository) FindByPaymentIntentID(_ context.Context, paymentIntentID string) (*entities.FundingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.fundingSessions {
		if s.PaymentIntentID() == paymentIntentID {
			return s, nil
		}
	}
	return nil, errors.ErrEntityNotFound
}

func (r *FundingSessionRepository) ExpireStale(_ context.Context, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	expired := 0
	for _, s := range r.store.fundingSessions {
		if s.IsExpired(now) {
			if err := s.Expire(); err == nil {
				expired++
			}
		}
	}
	return expired, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
