package transactionops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow/payflow/internal/application/ledger"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	domainEvents "github.com/payflow/payflow/internal/domain/events"
	"github.com/payflow/payflow/internal/domain/valueobjects"
	"github.com/payflow/payflow/internal/infrastructure/events"
	"github.com/payflow/payflow/internal/infrastructure/persistence/memory"
)

var usd = valueobjects.MustCurrency("USD")

type env struct {
	repos     ports.Repositories
	bus       *events.MemoryBus
	uc        *PostTransactionUseCase
	partnerID uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := memory.NewStore().Repositories()
	bus := events.NewMemoryBus(logger)
	engine := ledger.NewEngine(repos.Wallets, repos.Ledger)

	partner, err := entities.NewPartner("Test Partner")
	require.NoError(t, err)
	require.NoError(t, partner.Approve())
	require.NoError(t, repos.Partners.Save(context.Background(), partner))

	return &env{
		repos:     repos,
		bus:       bus,
		uc:        NewPostTransactionUseCase(repos.Partners, repos.Wallets, repos.Transactions, engine, memory.NewUnitOfWork(), bus, logger),
		partnerID: partner.ID(),
	}
}

func (e *env) wallet(t *testing.T) *entities.Wallet {
	t.Helper()
	w, err := entities.NewWallet(e.partnerID, "test", usd, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.repos.Wallets.Save(context.Background(), w))
	return w
}

func (e *env) balance(t *testing.T, walletID uuid.UUID) string {
	t.Helper()
	m, err := e.repos.Ledger.LatestBalance(context.Background(), walletID, usd)
	require.NoError(t, err)
	return m.String()
}

func money(t *testing.T, amount string) valueobjects.Money {
	t.Helper()
	m, err := valueobjects.NewMoney(amount, usd)
	require.NoError(t, err)
	return m
}

func TestExecute_CreditCreatesClearingWalletLazily(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	to := w.ID()

	tx, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:       entities.TransactionTypeCredit,
		ToWalletID: &to,
		Amount:     money(t, "100.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, tx.Status())
	assert.Equal(t, "100.00", e.balance(t, w.ID()))

	// The clearing wallet was created and recorded in the partner settings.
	partner, err := e.repos.Partners.FindByID(ctx, e.partnerID)
	require.NoError(t, err)
	clearingID, ok := partner.Setting(entities.ClearingWalletSettingKey("USD"))
	require.True(t, ok)
	assert.Equal(t, "-100.00", e.balance(t, uuid.MustParse(clearingID)))

	// A second credit reuses the same clearing wallet.
	tx2, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:       entities.TransactionTypeCredit,
		ToWalletID: &to,
		Amount:     money(t, "25.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, tx2.Status())
	assert.Equal(t, "-125.00", e.balance(t, uuid.MustParse(clearingID)))

	// Clearing wallets stay out of the partner-facing listing.
	wallets, err := e.repos.Wallets.ListByPartner(ctx, e.partnerID, 0, 100)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestExecute_TransferMovesFundsBetweenWallets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := e.wallet(t)
	dst := e.wallet(t)
	srcID, dstID := src.ID(), dst.ID()

	_, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type: entities.TransactionTypeCredit, ToWalletID: &srcID, Amount: money(t, "100.00"),
	})
	require.NoError(t, err)

	tx, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:         entities.TransactionTypeTransfer,
		FromWalletID: &srcID,
		ToWalletID:   &dstID,
		Amount:       money(t, "40.00"),
		Description:  "split",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, tx.Status())
	assert.Equal(t, "60.00", e.balance(t, srcID))
	assert.Equal(t, "40.00", e.balance(t, dstID))

	// Exactly two entries, one per side, netting to zero.
	entries, err := e.repos.Ledger.ListByTransaction(ctx, tx.ID())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entities.EntryTypeDebit, entries[0].Type())
	assert.Equal(t, entities.EntryTypeCredit, entries[1].Type())
	assert.True(t, entries[0].Amount().Equals(entries[1].Amount()))
}

func TestExecute_InsufficientFundsPersistsFailedTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	from := w.ID()

	tx, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:           entities.TransactionTypeDebit,
		FromWalletID:   &from,
		Amount:         money(t, "10.00"),
		IdempotencyKey: "debit-1",
	})
	require.Error(t, err)
	assert.True(t, errors.IsLedgerRejection(err))
	require.NotNil(t, tx)
	assert.Equal(t, entities.TransactionStatusFailed, tx.Status())
	assert.NotEmpty(t, tx.FailureReason())

	// The failed record survives and the balance is untouched.
	stored, err := e.repos.Transactions.FindByID(ctx, tx.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusFailed, stored.Status())
	assert.Equal(t, "0.00", e.balance(t, from))
}

func TestExecute_IdempotentReplayReturnsPriorRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	to := w.ID()

	first, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:           entities.TransactionTypeCredit,
		ToWalletID:     &to,
		Amount:         money(t, "100.00"),
		IdempotencyKey: "credit-1",
	})
	require.NoError(t, err)

	// Same key, even with a different amount: the first record wins.
	replay, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:           entities.TransactionTypeCredit,
		ToWalletID:     &to,
		Amount:         money(t, "999.00"),
		IdempotencyKey: "credit-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID(), replay.ID())
	assert.Equal(t, "100.00", replay.Amount().String())
	assert.Equal(t, "100.00", e.balance(t, to))
}

func TestExecute_FailedTransactionReplaysAsFailed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	from := w.ID()

	req := PostRequest{
		Type:           entities.TransactionTypeDebit,
		FromWalletID:   &from,
		Amount:         money(t, "10.00"),
		IdempotencyKey: "debit-replay",
	}
	first, err := e.uc.Execute(ctx, e.partnerID, req)
	require.Error(t, err)
	require.NotNil(t, first)

	// The retry with the same key returns the failed record without error.
	replay, err := e.uc.Execute(ctx, e.partnerID, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), replay.ID())
	assert.Equal(t, entities.TransactionStatusFailed, replay.Status())
}

func TestExecute_ForeignWalletIsScopeError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	other, err := entities.NewPartner("Other Partner")
	require.NoError(t, err)
	require.NoError(t, other.Approve())
	require.NoError(t, e.repos.Partners.Save(ctx, other))

	foreign, err := entities.NewWallet(other.ID(), "theirs", usd, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.repos.Wallets.Save(ctx, foreign))
	foreignID := foreign.ID()

	// Suspend the foreign wallet: scope must be checked before status, so
	// the caller learns nothing about the wallet's state.
	require.NoError(t, foreign.Suspend())

	_, err = e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:       entities.TransactionTypeCredit,
		ToWalletID: &foreignID,
		Amount:     money(t, "10.00"),
	})
	assert.ErrorIs(t, err, errors.ErrWrongPartnerScope)
}

func TestExecute_SuspendedWalletRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	require.NoError(t, w.Suspend())
	to := w.ID()

	_, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:       entities.TransactionTypeCredit,
		ToWalletID: &to,
		Amount:     money(t, "10.00"),
	})
	assert.True(t, errors.IsBusinessRuleViolation(err))
}

func TestExecute_CurrencyMismatchRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	to := w.ID()

	eur, err := valueobjects.NewMoney("10.00", valueobjects.MustCurrency("EUR"))
	require.NoError(t, err)

	_, err = e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type:       entities.TransactionTypeCredit,
		ToWalletID: &to,
		Amount:     eur,
	})
	assert.True(t, errors.IsValidation(err))
}

func TestExecute_ConcurrentCrossingTransfersConserveTotal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.wallet(t)
	b := e.wallet(t)
	aID, bID := a.ID(), b.ID()

	for _, to := range []*uuid.UUID{&aID, &bID} {
		_, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
			Type: entities.TransactionTypeCredit, ToWalletID: to, Amount: money(t, "100.00"),
		})
		require.NoError(t, err)
	}

	// Crossing transfers in both directions at once. Every one must settle
	// and the two balances must still sum to the seeded total.
	const pairs = 4
	amt := money(t, "5.00")
	errs := make([]error, 2*pairs)
	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, errs[2*i] = e.uc.Execute(ctx, e.partnerID, PostRequest{
				Type: entities.TransactionTypeTransfer, FromWalletID: &aID, ToWalletID: &bID,
				Amount: amt, IdempotencyKey: fmt.Sprintf("xfer-ab-%d", i),
			})
		}(i)
		go func(i int) {
			defer wg.Done()
			_, errs[2*i+1] = e.uc.Execute(ctx, e.partnerID, PostRequest{
				Type: entities.TransactionTypeTransfer, FromWalletID: &bID, ToWalletID: &aID,
				Amount: amt, IdempotencyKey: fmt.Sprintf("xfer-ba-%d", i),
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	balA, err := e.repos.Ledger.LatestBalance(ctx, aID, usd)
	require.NoError(t, err)
	balB, err := e.repos.Ledger.LatestBalance(ctx, bID, usd)
	require.NoError(t, err)
	total, err := balA.Add(balB)
	require.NoError(t, err)
	assert.Equal(t, "200.00", total.String())
	assert.False(t, balA.IsNegative())
	assert.False(t, balB.IsNegative())
}

func TestExecute_ConcurrentPostsWithSameKeyShareOneRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	to := w.ID()
	amt := money(t, "10.00")

	const workers = 8
	results := make([]*entities.Transaction, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.uc.Execute(ctx, e.partnerID, PostRequest{
				Type: entities.TransactionTypeCredit, ToWalletID: &to,
				Amount: amt, IdempotencyKey: "credit-race",
			})
		}(i)
	}
	wg.Wait()

	// One writer wins the unique key; everyone else gets the winner's record.
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ID(), results[i].ID())
	}
	assert.Equal(t, "10.00", e.balance(t, to))
}

func TestExecute_PublishesLifecycleEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.wallet(t)
	to := w.ID()

	var completed, failed int
	require.NoError(t, e.bus.Subscribe(domainEvents.EventTypeTransactionCompleted,
		func(context.Context, domainEvents.DomainEvent) error { completed++; return nil }))
	require.NoError(t, e.bus.Subscribe(domainEvents.EventTypeTransactionFailed,
		func(context.Context, domainEvents.DomainEvent) error { failed++; return nil }))

	_, err := e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type: entities.TransactionTypeCredit, ToWalletID: &to, Amount: money(t, "10.00"),
	})
	require.NoError(t, err)

	_, err = e.uc.Execute(ctx, e.partnerID, PostRequest{
		Type: entities.TransactionTypeDebit, FromWalletID: &to, Amount: money(t, "500.00"),
	})
	require.Error(t, err)

	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
}
