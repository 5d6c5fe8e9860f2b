package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow/payflow/internal/application/ledger"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/application/usecases/funding"
	"github.com/payflow/payflow/internal/application/usecases/transactionops"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
	"github.com/payflow/payflow/internal/infrastructure/events"
	"github.com/payflow/payflow/internal/infrastructure/gateway"
	"github.com/payflow/payflow/internal/infrastructure/persistence/memory"
)

const webhookSecret = "whsec_inbound_test"

var usd = valueobjects.MustCurrency("USD")

type env struct {
	repos     ports.Repositories
	mock      *gateway.Mock
	funding   *funding.Manager
	processor *Processor
	partnerID uuid.UUID
	wallet    *entities.Wallet
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := memory.NewStore().Repositories()
	uow := memory.NewUnitOfWork()
	bus := events.NewMemoryBus(logger)
	engine := ledger.NewEngine(repos.Wallets, repos.Ledger)
	orchestrator := transactionops.NewPostTransactionUseCase(
		repos.Partners, repos.Wallets, repos.Transactions, engine, uow, bus, logger)

	mock := gateway.NewMock(webhookSecret)
	registry := gateway.NewRegistry("mock")
	registry.Register(mock)

	fundingManager := funding.NewManager(repos.FundingSessions, repos.Wallets, registry, orchestrator, bus, logger)

	partner, err := entities.NewPartner("Webhook Partner")
	require.NoError(t, err)
	require.NoError(t, partner.Approve())
	require.NoError(t, repos.Partners.Save(ctx, partner))

	w, err := entities.NewWallet(partner.ID(), "main", usd, nil, nil)
	require.NoError(t, err)
	require.NoError(t, repos.Wallets.Save(ctx, w))

	return &env{
		repos:     repos,
		mock:      mock,
		funding:   fundingManager,
		processor: NewProcessor(registry, repos.GatewayTransactions, repos.Transactions, fundingManager, uow, bus, logger),
		partnerID: partner.ID(),
		wallet:    w,
	}
}

// signedEvent builds a raw mock-gateway event body and its signature header.
func signedEvent(t *testing.T, mock *gateway.Mock, eventID, eventType, objectID string, amountMinor int64, metadata map[string]string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       objectID,
				"amount":   amountMinor,
				"currency": "usd",
				"metadata": metadata,
			},
		},
	})
	require.NoError(t, err)
	return body, mock.SignEvent(body)
}

func (e *env) balance(t *testing.T) string {
	t.Helper()
	m, err := e.repos.Ledger.LatestBalance(context.Background(), e.wallet.ID(), usd)
	require.NoError(t, err)
	return m.String()
}

func TestProcessInbound_RejectsBadSignature(t *testing.T) {
	e := newEnv(t)
	body, _ := signedEvent(t, e.mock, "evt_1", "payment_intent.succeeded", "pi_x", 1000, nil)

	err := e.processor.ProcessInbound(context.Background(), "mock", body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	err = e.processor.ProcessInbound(context.Background(), "mock", body, "")
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	// A tampered body fails against the original signature.
	_, sig := signedEvent(t, e.mock, "evt_1", "payment_intent.succeeded", "pi_x", 1000, nil)
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = 'X'
	err = e.processor.ProcessInbound(context.Background(), "mock", tampered, sig)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestProcessInbound_FundingSuccessFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	amount, err := valueobjects.NewMoney("50.00", usd)
	require.NoError(t, err)
	session, err := e.funding.Create(ctx, e.partnerID, funding.CreateInput{
		WalletID: e.wallet.ID(), Amount: amount})
	require.NoError(t, err)

	body, sig := signedEvent(t, e.mock, "evt_success_1", "payment_intent.succeeded",
		session.PaymentIntentID(), 5000, nil)
	require.NoError(t, e.processor.ProcessInbound(ctx, "mock", body, sig))

	assert.Equal(t, "50.00", e.balance(t))
	stored, err := e.repos.FundingSessions.FindByID(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.FundingSessionStatusCompleted, stored.Status())
}

func TestProcessInbound_ReplayedEventIsIgnored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	amount, err := valueobjects.NewMoney("50.00", usd)
	require.NoError(t, err)
	session, err := e.funding.Create(ctx, e.partnerID, funding.CreateInput{
		WalletID: e.wallet.ID(), Amount: amount})
	require.NoError(t, err)

	body, sig := signedEvent(t, e.mock, "evt_replay", "payment_intent.succeeded",
		session.PaymentIntentID(), 5000, nil)

	// Same event id delivered three times: processed once, acknowledged thrice.
	for i := 0; i < 3; i++ {
		require.NoError(t, e.processor.ProcessInbound(ctx, "mock", body, sig))
	}
	assert.Equal(t, "50.00", e.balance(t))
}

func TestProcessInbound_CompletesReferencedTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	to := e.wallet.ID()

	amount, err := valueobjects.NewMoney("30.00", usd)
	require.NoError(t, err)
	tx, err := entities.NewTransaction(e.partnerID, entities.TransactionTypeCredit, amount, nil, &to, "", "")
	require.NoError(t, err)
	require.NoError(t, e.repos.Transactions.Save(ctx, tx))

	body, sig := signedEvent(t, e.mock, "evt_tx_1", "charge.succeeded", "ch_1", 3000,
		map[string]string{"transactionId": tx.ID().String()})
	require.NoError(t, e.processor.ProcessInbound(ctx, "mock", body, sig))

	stored, err := e.repos.Transactions.FindByID(ctx, tx.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, stored.Status())
	assert.Equal(t, "mock", stored.Gateway())
	assert.Equal(t, "evt_tx_1", stored.GatewayTransactionID())
}

func TestProcessInbound_FailsReferencedTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	to := e.wallet.ID()

	amount, err := valueobjects.NewMoney("30.00", usd)
	require.NoError(t, err)
	tx, err := entities.NewTransaction(e.partnerID, entities.TransactionTypeCredit, amount, nil, &to, "", "")
	require.NoError(t, err)
	require.NoError(t, e.repos.Transactions.Save(ctx, tx))

	body, sig := signedEvent(t, e.mock, "evt_fail_1", "payment_intent.payment_failed", "pi_f", 3000,
		map[string]string{"transactionId": tx.ID().String()})
	require.NoError(t, e.processor.ProcessInbound(ctx, "mock", body, sig))

	stored, err := e.repos.Transactions.FindByID(ctx, tx.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusFailed, stored.Status())
	assert.Equal(t, "0.00", e.balance(t))
}

func TestProcessInbound_UnknownEventTypeIsStoredAndAcknowledged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	body, sig := signedEvent(t, e.mock, "evt_other", "customer.created", "cus_1", 0, nil)
	require.NoError(t, e.processor.ProcessInbound(ctx, "mock", body, sig))

	record, err := e.repos.GatewayTransactions.FindByGatewayTransactionID(ctx, "evt_other")
	require.NoError(t, err)
	assert.Equal(t, "mock", record.Gateway())
}

func TestProcessInbound_UnknownGateway(t *testing.T) {
	e := newEnv(t)
	err := e.processor.ProcessInbound(context.Background(), "nonexistent", []byte("{}"), "sig")
	assert.Error(t, err)
}

// flakyTransactionRepository fails FindByID a set number of times, then
// delegates to the wrapped repository.
type flakyTransactionRepository struct {
	ports.TransactionRepository
	failuresLeft int
}

func (r *flakyTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return nil, fmt.Errorf("transient store failure")
	}
	return r.TransactionRepository.FindByID(ctx, id)
}

func TestProcessInbound_TransientFailureReleasesEventForRetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	to := e.wallet.ID()

	amount, err := valueobjects.NewMoney("30.00", usd)
	require.NoError(t, err)
	tx, err := entities.NewTransaction(e.partnerID, entities.TransactionTypeCredit, amount, nil, &to, "", "")
	require.NoError(t, err)
	require.NoError(t, e.repos.Transactions.Save(ctx, tx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := gateway.NewRegistry("mock")
	registry.Register(e.mock)
	flaky := &flakyTransactionRepository{TransactionRepository: e.repos.Transactions, failuresLeft: 1}
	processor := NewProcessor(registry, e.repos.GatewayTransactions, flaky, e.funding,
		memory.NewUnitOfWork(), events.NewMemoryBus(logger), logger)

	body, sig := signedEvent(t, e.mock, "evt_retry_1", "charge.succeeded", "ch_r1", 3000,
		map[string]string{"transactionId": tx.ID().String()})

	// The first delivery hits the transient failure; the error must surface
	// so the gateway redelivers.
	require.Error(t, processor.ProcessInbound(ctx, "mock", body, sig))

	// The event id was released: nothing marks the delivery as seen.
	_, err = e.repos.GatewayTransactions.FindByGatewayTransactionID(ctx, "evt_retry_1")
	assert.True(t, errors.IsNotFound(err))

	// The redelivery is processed, not swallowed as a duplicate.
	require.NoError(t, processor.ProcessInbound(ctx, "mock", body, sig))
	stored, err := e.repos.Transactions.FindByID(ctx, tx.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, stored.Status())
}
