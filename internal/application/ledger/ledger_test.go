package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
	"github.com/payflow/payflow/internal/infrastructure/persistence/memory"
)

var usd = valueobjects.MustCurrency("USD")

type fixture struct {
	repos  ports.Repositories
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewStore().Repositories()
	return &fixture{
		repos:  repos,
		engine: NewEngine(repos.Wallets, repos.Ledger),
	}
}

func (f *fixture) wallet(t *testing.T, currency valueobjects.Currency) *entities.Wallet {
	t.Helper()
	w, err := entities.NewWallet(uuid.New(), "test", currency, nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.repos.Wallets.Save(context.Background(), w))
	return w
}

func (f *fixture) clearingWallet(t *testing.T, currency valueobjects.Currency) *entities.Wallet {
	t.Helper()
	w, err := entities.NewClearingWallet(uuid.New(), currency)
	require.NoError(t, err)
	require.NoError(t, f.repos.Wallets.Save(context.Background(), w))
	return w
}

func money(t *testing.T, amount string) valueobjects.Money {
	t.Helper()
	m, err := valueobjects.NewMoney(amount, usd)
	require.NoError(t, err)
	return m
}

func TestEngine_BalancedPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clearing := f.clearingWallet(t, usd)
	wallet := f.wallet(t, usd)

	entries, err := f.engine.Append(ctx, uuid.New(), []EntryInput{
		{WalletID: clearing.ID(), Type: entities.EntryTypeDebit, Amount: money(t, "100.00")},
		{WalletID: wallet.ID(), Type: entities.EntryTypeCredit, Amount: money(t, "100.00")},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// The clearing wallet absorbed the debit and went negative.
	assert.Equal(t, "-100.00", entries[0].Balance().String())
	assert.Equal(t, "100.00", entries[1].Balance().String())

	balance, err := f.engine.Balance(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())
}

func TestEngine_RejectsUnbalancedSet(t *testing.T) {
	f := newFixture(t)
	a := f.wallet(t, usd)
	b := f.wallet(t, usd)

	_, err := f.engine.Append(context.Background(), uuid.New(), []EntryInput{
		{WalletID: a.ID(), Type: entities.EntryTypeDebit, Amount: money(t, "100.00")},
		{WalletID: b.ID(), Type: entities.EntryTypeCredit, Amount: money(t, "99.99")},
	})
	assert.ErrorIs(t, err, errors.ErrUnbalancedEntries)

	_, err = f.engine.Append(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, errors.ErrUnbalancedEntries)
}

func TestEngine_InsufficientBalanceFloorsPartnerWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clearing := f.clearingWallet(t, usd)
	wallet := f.wallet(t, usd)

	// Fund with 50, then try to debit 75.
	_, err := f.engine.Append(ctx, uuid.New(), []EntryInput{
		{WalletID: clearing.ID(), Type: entities.EntryTypeDebit, Amount: money(t, "50.00")},
		{WalletID: wallet.ID(), Type: entities.EntryTypeCredit, Amount: money(t, "50.00")},
	})
	require.NoError(t, err)

	_, err = f.engine.Append(ctx, uuid.New(), []EntryInput{
		{WalletID: wallet.ID(), Type: entities.EntryTypeDebit, Amount: money(t, "75.00")},
		{WalletID: clearing.ID(), Type: entities.EntryTypeCredit, Amount: money(t, "75.00")},
	})
	assert.ErrorIs(t, err, errors.ErrInsufficientBalance)
}

func TestEngine_ClearingWalletMayGoNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clearing := f.clearingWallet(t, usd)
	wallet := f.wallet(t, usd)

	for i := 0; i < 3; i++ {
		_, err := f.engine.Append(ctx, uuid.New(), []EntryInput{
			{WalletID: clearing.ID(), Type: entities.EntryTypeDebit, Amount: money(t, "10.00")},
			{WalletID: wallet.ID(), Type: entities.EntryTypeCredit, Amount: money(t, "10.00")},
		})
		require.NoError(t, err)
	}

	balance, err := f.engine.Balance(ctx, clearing)
	require.NoError(t, err)
	assert.Equal(t, "-30.00", balance.String())
}

func TestEngine_CurrencyChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	usdWallet := f.wallet(t, usd)
	eurWallet := f.wallet(t, valueobjects.MustCurrency("EUR"))

	// Mixed-currency entry set.
	eur, err := valueobjects.NewMoney("10.00", valueobjects.MustCurrency("EUR"))
	require.NoError(t, err)
	_, err = f.engine.Append(ctx, uuid.New(), []EntryInput{
		{WalletID: usdWallet.ID(), Type: entities.EntryTypeDebit, Amount: money(t, "10.00")},
		{WalletID: eurWallet.ID(), Type: entities.EntryTypeCredit, Amount: eur},
	})
	assert.ErrorIs(t, err, errors.ErrCurrencyMismatch)

	// Entry currency not matching the wallet's currency.
	_, err = f.engine.Append(ctx, uuid.New(), []EntryInput{
		{WalletID: eurWallet.ID(), Type: entities.EntryTypeDebit, Amount: money(t, "10.00")},
		{WalletID: usdWallet.ID(), Type: entities.EntryTypeCredit, Amount: money(t, "10.00")},
	})
	assert.ErrorIs(t, err, errors.ErrCurrencyMismatch)
}

func TestEngine_UnknownWallet(t *testing.T) {
	f := newFixture(t)
	wallet := f.wallet(t, usd)

	_, err := f.engine.Append(context.Background(), uuid.New(), []EntryInput{
		{WalletID: uuid.New(), Type: entities.EntryTypeDebit, Amount: money(t, "10.00")},
		{WalletID: wallet.ID(), Type: entities.EntryTypeCredit, Amount: money(t, "10.00")},
	})
	assert.ErrorIs(t, err, errors.ErrWalletNotFound)
}

func TestEngine_ZeroBalanceForFreshWallet(t *testing.T) {
	f := newFixture(t)
	wallet := f.wallet(t, usd)

	balance, err := f.engine.Balance(context.Background(), wallet)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assert.Equal(t, "0.00", balance.String())
}
