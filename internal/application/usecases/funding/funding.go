// Package funding manages wallet funding sessions: creating processor
// payment intents, tracking session state, and crediting the wallet exactly
// once when the processor reports success.
package funding

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/application/usecases/transactionops"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/events"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// Manager owns the funding session lifecycle.
type Manager struct {
	sessions     ports.FundingSessionRepository
	wallets      ports.WalletRepository
	gateways     ports.GatewayRegistry
	orchestrator *transactionops.PostTransactionUseCase
	publisher    ports.EventPublisher
	logger       *slog.Logger
}

// NewManager creates the funding session manager.
func NewManager(
	sessions ports.FundingSessionRepository,
	wallets ports.WalletRepository,
	gateways ports.GatewayRegistry,
	orchestrator *transactionops.PostTransactionUseCase,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		sessions:     sessions,
		wallets:      wallets,
		gateways:     gateways,
		orchestrator: orchestrator,
		publisher:    publisher,
		logger:       logger,
	}
}

// CreateInput carries a partner's funding request.
type CreateInput struct {
	WalletID   uuid.UUID
	Amount     valueobjects.Money
	Gateway    string // empty selects the default gateway
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Create verifies wallet ownership, registers a payment intent with the
// processor, and persists a session expiring 30 minutes out. The session is
// only written after the intent call returns, so a processor timeout leaves
// nothing local behind and the request is safe to retry.
func (m *Manager) Create(ctx context.Context, partnerID uuid.UUID, in CreateInput) (*entities.FundingSession, error) {
	w, err := m.wallets.FindByID(ctx, in.WalletID)
	if err != nil {
		return nil, err
	}
	if w.IsClearing() {
		return nil, errors.ErrEntityNotFound
	}
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
	if !w.Currency().Equals(in.Amount.Currency()) {
		return nil, errors.ValidationError{
			Field:   "currency",
			Message: fmt.Sprintf("wallet %s holds %s", w.ID(), w.Currency().Code()),
		}
	}

	gw, err := m.gateways.Get(in.Gateway)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"walletId":    w.ID().String(),
		"partnerId":   partnerID.String(),
		"sessionType": "funding",
	}
	for k, v := range in.Metadata {
		metadata[k] = v
	}

	intent, err := gw.CreatePaymentIntent(ctx, in.Amount.MinorUnits(), in.Amount.Currency().Code(), metadata)
	if err != nil {
		return nil, fmt.Errorf("gateway payment intent failed: %w", err)
	}

	session, err := entities.NewFundingSession(
		w.ID(), partnerID, gw.Name(), intent.ID, in.Amount, in.SuccessURL, in.CancelURL, in.Metadata, time.Now())
	if err != nil {
		return nil, err
	}
	if err := m.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the session for a partner, scope enforced.
func (m *Manager) Get(ctx context.Context, partnerID, sessionID uuid.UUID) (*entities.FundingSession, error) {
	session, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PartnerID() != partnerID {
		return nil, errors.ErrWrongPartnerScope
	}
	return session, nil
}

// GetPublic returns the session plus the intent's client secret for the
// public payment page. The secret is fetched from the session's own gateway
// on demand and never persisted. An expired session returns ErrSessionExpired
// (410). The first successful fetch moves a created session to active.
func (m *Manager) GetPublic(ctx context.Context, sessionID uuid.UUID) (*entities.FundingSession, string, error) {
	session, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if session.IsExpired(time.Now()) || session.Status() == entities.FundingSessionStatusExpired {
		return nil, "", errors.ErrSessionExpired
	}
	gw, err := m.gateways.Get(session.Gateway())
	if err != nil {
		return nil, "", err
	}
	intent, err := gw.GetPaymentIntent(ctx, session.PaymentIntentID())
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch payment intent: %w", err)
	}
	if session.Status() == entities.FundingSessionStatusCreated {
		if err := session.Activate(); err != nil {
			return nil, "", err
		}
		if err := m.sessions.Update(ctx, session); err != nil {
			return nil, "", err
		}
	}
	return session, intent.ClientSecret, nil
}

// ProcessSuccess credits the session's wallet after the processor reported
// a successful payment. The payment intent id doubles as the credit's
// idempotency key, so any number of duplicate succeeded webhooks credit the
// wallet exactly once. Unknown or already-terminal sessions log and no-op.
func (m *Manager) ProcessSuccess(ctx context.Context, paymentIntentID string) error {
	session, err := m.sessions.FindByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		if errors.IsNotFound(err) {
			m.logger.Info("succeeded webhook for unknown payment intent", "payment_intent_id", paymentIntentID)
			return nil
		}
		return err
	}
	if session.Status().IsTerminal() {
		m.logger.Info("succeeded webhook for terminal session",
			"session_id", session.ID().String(), "status", string(session.Status()))
		return nil
	}

	walletID := session.WalletID()
	tx, postErr := m.orchestrator.Execute(ctx, session.PartnerID(), transactionops.PostRequest{
		Type:           entities.TransactionTypeCredit,
		ToWalletID:     &walletID,
		Amount:         session.Amount(),
		Description:    "wallet funding " + session.ID().String(),
		IdempotencyKey: paymentIntentID,
	})
	if postErr != nil && tx == nil {
		return fmt.Errorf("funding credit failed: %w", postErr)
	}

	if postErr != nil || tx.Status() == entities.TransactionStatusFailed {
		if err := session.MarkFailed(); err != nil && !stderrors.Is(err, errors.ErrSessionTerminal) {
			return err
		}
		if err := m.sessions.Update(ctx, session); err != nil {
			return err
		}
		m.publish(ctx, events.NewFundingSessionFailed(
			session.ID(), session.WalletID(), session.PartnerID(), "credit rejected"))
		if postErr != nil {
			return postErr
		}
		return errors.NewDomainError("FUNDING_CREDIT_FAILED", "funding credit did not complete", nil)
	}

	if err := session.Complete(); err != nil {
		if stderrors.Is(err, errors.ErrSessionTerminal) {
			return nil
		}
		return err
	}
	if err := m.sessions.Update(ctx, session); err != nil {
		return err
	}
	m.publish(ctx, events.NewFundingSessionCompleted(
		session.ID(), session.WalletID(), session.PartnerID(),
		session.Amount().String(), session.Amount().Currency().Code()))
	return nil
}

// ProcessFailure marks the session failed after a processor payment failure.
// The wallet balance is untouched.
func (m *Manager) ProcessFailure(ctx context.Context, paymentIntentID, reason string) error {
	session, err := m.sessions.FindByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		if errors.IsNotFound(err) {
			m.logger.Info("failed webhook for unknown payment intent", "payment_intent_id", paymentIntentID)
			return nil
		}
		return err
	}
	if session.Status().IsTerminal() {
		return nil
	}
	if err := session.MarkFailed(); err != nil {
		return err
	}
	if err := m.sessions.Update(ctx, session); err != nil {
		return err
	}
	m.publish(ctx, events.NewFundingSessionFailed(session.ID(), session.WalletID(), session.PartnerID(), reason))
	return nil
}

// ExpireStale is the background sweep marking created sessions past their
// deadline as expired. Returns the number of sessions expired.
func (m *Manager) ExpireStale(ctx context.Context) (int, error) {
	return m.sessions.ExpireStale(ctx, time.Now())
}

func (m *Manager) publish(ctx context.Context, event events.DomainEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
