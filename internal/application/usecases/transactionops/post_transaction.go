// Package transactionops - the transaction orchestrator. Post composes
// credits, debits and transfers into balanced ledger posts, enforcing
// idempotency, partner scope, wallet status, currency match and balance
// sufficiency. This is the only write path into the ledger.
package transactionops

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/application/ledger"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/events"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// PostRequest is one credit, debit or transfer to be posted.
type PostRequest struct {
	Type           entities.TransactionType
	FromWalletID   *uuid.UUID
	ToWalletID     *uuid.UUID
	Amount         valueobjects.Money
	Description    string
	IdempotencyKey string
}

// PostTransactionUseCase is the single entry point for partner-initiated
// money movement.
type PostTransactionUseCase struct {
	partners     ports.PartnerRepository
	wallets      ports.WalletRepository
	transactions ports.TransactionRepository
	engine       *ledger.Engine
	uow          ports.UnitOfWork
	publisher    ports.EventPublisher
	logger       *slog.Logger
}

// NewPostTransactionUseCase creates the orchestrator.
func NewPostTransactionUseCase(
	partners ports.PartnerRepository,
	wallets ports.WalletRepository,
	transactions ports.TransactionRepository,
	engine *ledger.Engine,
	uow ports.UnitOfWork,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) *PostTransactionUseCase {
	return &PostTransactionUseCase{
		partners:     partners,
		wallets:      wallets,
		transactions: transactions,
		engine:       engine,
		uow:          uow,
		publisher:    publisher,
		logger:       logger,
	}
}

// Execute posts the request. Exactly one committed state transition happens
// per request:
//
//   - a replayed idempotency key returns the first request's record verbatim
//   - a ledger rejection (insufficient funds, mismatch) persists a failed
//     transaction and returns it together with the rejection error
//   - otherwise the transaction commits as completed and a
//     transaction.completed event is published
func (uc *PostTransactionUseCase) Execute(ctx context.Context, partnerID uuid.UUID, req PostRequest) (*entities.Transaction, error) {
	// Idempotency first: keys are globally unique, so a hit returns the
	// prior record regardless of the rest of the request.
	if req.IdempotencyKey != "" {
		existing, err := uc.transactions.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	tx, err := entities.NewTransaction(
		partnerID, req.Type, req.Amount, req.FromWalletID, req.ToWalletID,
		req.IdempotencyKey, req.Description,
	)
	if err != nil {
		return nil, err
	}

	postErr := uc.uow.Execute(ctx, func(txCtx context.Context) error {
		inputs, err := uc.resolveAndLock(txCtx, partnerID, tx, req)
		if err != nil {
			return err
		}
		if err := uc.transactions.Save(txCtx, tx); err != nil {
			return err
		}
		if _, err := uc.engine.Append(txCtx, tx.ID(), inputs); err != nil {
			return err
		}
		if err := tx.Complete(); err != nil {
			return err
		}
		return uc.transactions.Update(txCtx, tx)
	})

	switch {
	case postErr == nil:
		uc.publish(ctx, events.NewTransactionCompleted(
			tx.ID(), partnerID, string(tx.Type()), tx.Amount().String(), tx.Currency().Code()))
		return tx, nil

	case stderrors.Is(postErr, errors.ErrDuplicateIdempotencyKey):
		// A concurrent peer with the same key won the unique index.
		// Its record is committed by the time we get here; return it.
		winner, err := uc.transactions.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency collision but winner not found: %w", err)
		}
		return winner, nil

	case errors.IsLedgerRejection(postErr):
		// The ledger scope rolled back; persist the transaction's terminal
		// failure in its own scope so the record survives.
		if err := tx.Fail(postErr.Error()); err != nil {
			return nil, err
		}
		if err := uc.persistFailed(ctx, tx); err != nil {
			return nil, err
		}
		uc.publish(ctx, events.NewTransactionFailed(
			tx.ID(), partnerID, string(tx.Type()), tx.Amount().String(), tx.Currency().Code(), tx.FailureReason()))
		return tx, postErr

	default:
		return nil, postErr
	}
}

// resolveAndLock loads and row-locks every wallet the post touches, in
// ascending id order so crossing transfers cannot deadlock, and validates
// scope, status and currency. It returns the entry set to append.
func (uc *PostTransactionUseCase) resolveAndLock(ctx context.Context, partnerID uuid.UUID, tx *entities.Transaction, req PostRequest) ([]ledger.EntryInput, error) {
	ids := make([]uuid.UUID, 0, 2)
	if req.FromWalletID != nil {
		ids = append(ids, *req.FromWalletID)
	}
	if req.ToWalletID != nil {
		ids = append(ids, *req.ToWalletID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	locked := make(map[uuid.UUID]*entities.Wallet, len(ids))
	for _, id := range ids {
		w, err := uc.wallets.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, errors.ErrWalletNotFound
			}
			return nil, fmt.Errorf("failed to lock wallet %s: %w", id, err)
		}
		// Scope before status before currency: a foreign wallet is 403,
		// never a hint about its state.
		if !w.BelongsTo(partnerID) {
			return nil, errors.ErrWrongPartnerScope
		}
		if !w.IsActive() {
			return nil, errors.NewBusinessRuleViolation(
				"WALLET_NOT_ACTIVE",
				fmt.Sprintf("wallet %s is %s", w.ID(), w.Status()),
				map[string]interface{}{"wallet_id": w.ID().String()},
			)
		}
		if !w.Currency().Equals(req.Amount.Currency()) {
			return nil, errors.ValidationError{
				Field:   "currency",
				Message: fmt.Sprintf("wallet %s holds %s", w.ID(), w.Currency().Code()),
			}
		}
		locked[id] = w
	}

	switch req.Type {
	case entities.TransactionTypeTransfer:
		return []ledger.EntryInput{
			{WalletID: *req.FromWalletID, Type: entities.EntryTypeDebit, Amount: req.Amount, Description: req.Description},
			{WalletID: *req.ToWalletID, Type: entities.EntryTypeCredit, Amount: req.Amount, Description: req.Description},
		}, nil

	case entities.TransactionTypeCredit:
		clearing, err := uc.ensureClearingWallet(ctx, partnerID, req.Amount.Currency())
		if err != nil {
			return nil, err
		}
		return []ledger.EntryInput{
			{WalletID: clearing.ID(), Type: entities.EntryTypeDebit, Amount: req.Amount, Description: req.Description},
			{WalletID: *req.ToWalletID, Type: entities.EntryTypeCredit, Amount: req.Amount, Description: req.Description},
		}, nil

	case entities.TransactionTypeDebit:
		clearing, err := uc.ensureClearingWallet(ctx, partnerID, req.Amount.Currency())
		if err != nil {
			return nil, err
		}
		return []ledger.EntryInput{
			{WalletID: *req.FromWalletID, Type: entities.EntryTypeDebit, Amount: req.Amount, Description: req.Description},
			{WalletID: clearing.ID(), Type: entities.EntryTypeCredit, Amount: req.Amount, Description: req.Description},
		}, nil

	default:
		return nil, errors.ValidationError{Field: "type", Message: "invalid transaction type"}
	}
}

// ensureClearingWallet returns the partner's clearing wallet for the
// currency, creating it lazily. One clearing wallet exists per
// (partner, currency); the partner row lock serializes concurrent creation.
func (uc *PostTransactionUseCase) ensureClearingWallet(ctx context.Context, partnerID uuid.UUID, currency valueobjects.Currency) (*entities.Wallet, error) {
	partner, err := uc.partners.FindByIDForUpdate(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock partner %s: %w", partnerID, err)
	}

	key := entities.ClearingWalletSettingKey(currency.Code())
	if idStr, ok := partner.Setting(key); ok {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt clearing wallet setting %q: %w", idStr, err)
		}
		w, err := uc.wallets.FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lock clearing wallet %s: %w", id, err)
		}
		return w, nil
	}

	clearing, err := entities.NewClearingWallet(partnerID, currency)
	if err != nil {
		return nil, err
	}
	if err := uc.wallets.Save(ctx, clearing); err != nil {
		return nil, fmt.Errorf("failed to create clearing wallet: %w", err)
	}
	partner.SetSetting(key, clearing.ID().String())
	if err := uc.partners.Save(ctx, partner); err != nil {
		return nil, fmt.Errorf("failed to record clearing wallet: %w", err)
	}
	return clearing, nil
}

// persistFailed writes the failed transaction in a fresh scope, after the
// ledger scope rolled back. A duplicate-key race here means a concurrent
// peer committed first; that record wins and this write is skipped.
func (uc *PostTransactionUseCase) persistFailed(ctx context.Context, tx *entities.Transaction) error {
	err := uc.uow.Execute(ctx, func(txCtx context.Context) error {
		return uc.transactions.Save(txCtx, tx)
	})
	if err != nil && !stderrors.Is(err, errors.ErrDuplicateIdempotencyKey) {
		return fmt.Errorf("failed to persist failed transaction: %w", err)
	}
	return nil
}

func (uc *PostTransactionUseCase) publish(ctx context.Context, event events.DomainEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn("failed to publish event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID().String(),
			"error", err,
		)
	}
}
