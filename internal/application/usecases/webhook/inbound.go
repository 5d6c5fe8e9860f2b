// Package webhook processes gateway webhooks and fans events out to
// partners. Inbound events are signature-verified, deduplicated by the
// processor's event id, and reconciled against local transactions and
// funding sessions.
package webhook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/application/usecases/funding"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/events"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// Event types the processor reconciles. Anything else is stored and
// acknowledged without local effect.
const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	eventChargeSucceeded  = "charge.succeeded"
	eventPaymentFailed    = "payment_intent.payment_failed"
)

// Processor handles inbound gateway webhooks.
type Processor struct {
	gateways     ports.GatewayRegistry
	gatewayTxs   ports.GatewayTransactionRepository
	transactions ports.TransactionRepository
	funding      *funding.Manager
	uow          ports.UnitOfWork
	publisher    ports.EventPublisher
	logger       *slog.Logger
}

// NewProcessor creates the inbound webhook processor.
func NewProcessor(
	gateways ports.GatewayRegistry,
	gatewayTxs ports.GatewayTransactionRepository,
	transactions ports.TransactionRepository,
	funding *funding.Manager,
	uow ports.UnitOfWork,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		gateways:     gateways,
		gatewayTxs:   gatewayTxs,
		transactions: transactions,
		funding:      funding,
		uow:          uow,
		publisher:    publisher,
		logger:       logger,
	}
}

// ProcessInbound verifies and reconciles one raw webhook delivery.
//
// The raw body is verified before any JSON handling; a signature failure
// returns ErrInvalidSignature (400, fail closed). Replayed events hit the
// unique gateway transaction id and become acknowledged no-ops: no state
// change, no partner fan-out.
func (p *Processor) ProcessInbound(ctx context.Context, gatewayName string, rawBody []byte, signatureHeader string) error {
	gw, err := p.gateways.Get(gatewayName)
	if err != nil {
		return err
	}
	event, err := gw.VerifyWebhook(rawBody, signatureHeader)
	if err != nil {
		return err
	}

	currency, err := valueobjects.NewCurrency(event.Data.Currency)
	if err != nil {
		return fmt.Errorf("%w: event %s carries currency %q",
			errors.ErrInvalidSignature, event.ID, event.Data.Currency)
	}
	amount, err := valueobjects.NewMoneyFromMinorUnits(event.Data.AmountMinor, currency)
	if err != nil {
		return fmt.Errorf("event %s carries invalid amount: %w", event.ID, err)
	}

	status := "completed"
	if event.Type == eventPaymentFailed {
		status = "failed"
	}

	var localTxID *uuid.UUID
	if raw, ok := event.Data.Metadata["transactionId"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			localTxID = &id
		}
	}

	record, err := entities.NewGatewayTransaction(
		event.ID, gw.Name(), status, amount, event.Raw, localTxID)
	if err != nil {
		return err
	}

	inserted, err := p.gatewayTxs.InsertIfAbsent(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to record gateway event: %w", err)
	}
	if !inserted {
		p.logger.Info("duplicate gateway event ignored",
			"gateway", gw.Name(), "event_id", event.ID, "event_type", event.Type)
		return nil
	}

	switch event.Type {
	case eventPaymentSucceeded, eventChargeSucceeded:
		err = p.reconcileSuccess(ctx, gw.Name(), event.ID, event.Data.ObjectID, localTxID)
	case eventPaymentFailed:
		err = p.reconcileFailure(ctx, event.Data.ObjectID, localTxID)
	default:
		p.logger.Info("unhandled gateway event stored",
			"gateway", gw.Name(), "event_id", event.ID, "event_type", event.Type)
		return nil
	}
	if err != nil {
		// The dedup record committed but reconciliation did not. Release the
		// event id so the gateway's retry is processed instead of swallowed.
		if delErr := p.gatewayTxs.Delete(ctx, event.ID); delErr != nil {
			p.logger.Error("failed to release gateway event for retry",
				"gateway", gw.Name(), "event_id", event.ID, "error", delErr)
		}
		return err
	}
	return nil
}

// reconcileSuccess completes the referenced local transaction, or routes the
// intent to the funding manager when no transaction is referenced.
func (p *Processor) reconcileSuccess(ctx context.Context, gateway, eventID, objectID string, localTxID *uuid.UUID) error {
	if localTxID != nil {
		return p.uow.Execute(ctx, func(txCtx context.Context) error {
			tx, err := p.transactions.FindByID(txCtx, *localTxID)
			if err != nil {
				if errors.IsNotFound(err) {
					p.logger.Warn("gateway event references unknown transaction",
						"event_id", eventID, "transaction_id", localTxID.String())
					return nil
				}
				return err
			}
			if tx.Status().IsTerminal() {
				return nil
			}
			tx.AttachGateway(gateway, eventID)
			if err := tx.Complete(); err != nil {
				return err
			}
			if err := p.transactions.Update(txCtx, tx); err != nil {
				return err
			}
			p.publish(ctx, events.NewTransactionCompleted(
				tx.ID(), tx.PartnerID(), string(tx.Type()), tx.Amount().String(), tx.Currency().Code()))
			return nil
		})
	}
	return p.funding.ProcessSuccess(ctx, objectID)
}

// reconcileFailure fails the referenced local transaction, or marks the
// funding session failed. Balances are never touched on failure.
func (p *Processor) reconcileFailure(ctx context.Context, objectID string, localTxID *uuid.UUID) error {
	if localTxID != nil {
		return p.uow.Execute(ctx, func(txCtx context.Context) error {
			tx, err := p.transactions.FindByID(txCtx, *localTxID)
			if err != nil {
				if errors.IsNotFound(err) {
					return nil
				}
				return err
			}
			if tx.Status().IsTerminal() {
				return nil
			}
			if err := tx.Fail("gateway reported payment failure"); err != nil {
				return err
			}
			if err := p.transactions.Update(txCtx, tx); err != nil {
				return err
			}
			p.publish(ctx, events.NewTransactionFailed(
				tx.ID(), tx.PartnerID(), string(tx.Type()), tx.Amount().String(),
				tx.Currency().Code(), tx.FailureReason()))
			return nil
		})
	}
	return p.funding.ProcessFailure(ctx, objectID, "gateway reported payment failure")
}

func (p *Processor) publish(ctx context.Context, event events.DomainEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
