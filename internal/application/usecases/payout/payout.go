// Package payout moves funds out of the system: a ledger debit through the
// transaction orchestrator followed by a processor payout. The debit settles
// first; an insufficient balance rejects the payout before the processor is
// ever called.
package payout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/application/usecases/transactionops"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/events"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// Service executes partner payouts.
type Service struct {
	orchestrator *transactionops.PostTransactionUseCase
	transactions ports.TransactionRepository
	gateways     ports.GatewayRegistry
	publisher    ports.EventPublisher
	logger       *slog.Logger
}

// NewService creates the payout service.
func NewService(
	orchestrator *transactionops.PostTransactionUseCase,
	transactions ports.TransactionRepository,
	gateways ports.GatewayRegistry,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		orchestrator: orchestrator,
		transactions: transactions,
		gateways:     gateways,
		publisher:    publisher,
		logger:       logger,
	}
}

// Input carries a partner's payout request.
type Input struct {
	FromWalletID   uuid.UUID
	Amount         valueobjects.Money
	Destination    string // processor-side destination token
	Gateway        string // empty selects the default gateway
	Description    string
	IdempotencyKey string
}

// Execute debits the wallet and hands the funds to the processor.
//
// The idempotency key covers the debit, so a retried request neither
// double-debits nor re-sends the payout: a replay that finds the debit
// already completed returns the prior record without calling the processor
// again. A processor failure after the debit leaves the debit in place and
// surfaces the error; the funds sit in the clearing wallet until an operator
// retries or reverses.
func (s *Service) Execute(ctx context.Context, partnerID uuid.UUID, in Input) (*entities.Transaction, error) {
	if in.Destination == "" {
		return nil, errors.ValidationError{Field: "destination", Message: "destination is required"}
	}

	gw, err := s.gateways.Get(in.Gateway)
	if err != nil {
		return nil, err
	}

	replay := false
	if in.IdempotencyKey != "" {
		if prior, err := s.transactions.FindByIdempotencyKey(ctx, in.IdempotencyKey); err == nil {
			if prior.GatewayTransactionID() != "" {
				return prior, nil
			}
			replay = true
		} else if !errors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	fromID := in.FromWalletID
	tx, postErr := s.orchestrator.Execute(ctx, partnerID, transactionops.PostRequest{
		Type:           entities.TransactionTypeDebit,
		FromWalletID:   &fromID,
		Amount:         in.Amount,
		Description:    in.Description,
		IdempotencyKey: in.IdempotencyKey,
	})
	if postErr != nil {
		return tx, postErr
	}
	if replay && tx.Status() != entities.TransactionStatusCompleted {
		return tx, nil
	}

	payout, err := gw.CreatePayout(ctx, in.Destination, in.Amount.MinorUnits(), in.Amount.Currency().Code())
	if err != nil {
		// The debit is committed. Surface the processor failure; the
		// clearing wallet holds the funds until the payout is retried.
		s.logger.Error("processor payout failed after debit",
			"transaction_id", tx.ID().String(), "error", err)
		return tx, fmt.Errorf("processor payout failed: %w", err)
	}

	tx.AttachGateway(gw.Name(), payout.ID)
	if err := s.transactions.Update(ctx, tx); err != nil {
		return tx, fmt.Errorf("failed to record payout reference: %w", err)
	}

	s.publish(ctx, events.NewPayoutInitiated(
		tx.ID(), partnerID, in.Destination, in.Amount.String(), in.Amount.Currency().Code()))
	return tx, nil
}

func (s *Service) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
