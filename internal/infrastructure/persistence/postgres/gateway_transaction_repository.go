package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	domainErrors "github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

var _ ports.GatewayTransactionRepository = (*GatewayTransactionRepository)(nil)

// GatewayTransactionRepository implements ports.GatewayTransactionRepository.
// The unique index on gateway_transaction_id is the webhook dedup mechanism:
// replayed deliveries lose the insert and are acknowledged without effect.
type GatewayTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewGatewayTransactionRepository creates a GatewayTransactionRepository.
func NewGatewayTransactionRepository(pool *pgxpool.Pool) *GatewayTransactionRepository {
	return &GatewayTransactionRepository{pool: pool}
}

func (r *GatewayTransactionRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// InsertIfAbsent stores the record unless the gateway transaction id was
// already seen. Returns false on a duplicate.
func (r *GatewayTransactionRepository) InsertIfAbsent(ctx context.Context, gt *entities.GatewayTransaction) (bool, error) {
	q := r.getQuerier(ctx)
	query := `
		INSERT INTO gateway_transactions (id, gateway_transaction_id, gateway, status, amount, currency, webhook_data, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (gateway_transaction_id) DO NOTHING
	`
	result, err := q.Exec(ctx, query,
		gt.ID(),
		gt.GatewayTransactionID(),
		gt.Gateway(),
		gt.Status(),
		gt.Amount().String(),
		gt.Amount().Currency().Code(),
		gt.WebhookData(),
		gt.TransactionID(),
		gt.CreatedAt(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert gateway transaction: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Delete removes a dedup record so a retried delivery of the same event is
// processed again. Used when handling fails after InsertIfAbsent won.
func (r *GatewayTransactionRepository) Delete(ctx context.Context, gatewayTransactionID string) error {
	q := r.getQuerier(ctx)
	query := `DELETE FROM gateway_transactions WHERE gateway_transaction_id = $1`
	if _, err := q.Exec(ctx, query, gatewayTransactionID); err != nil {
		return fmt.Errorf("failed to delete gateway transaction: %w", err)
	}
	return nil
}

// FindByGatewayTransactionID loads the mirror of one processor event.
func (r *GatewayTransactionRepository) FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*entities.GatewayTransaction, error) {
	q := r.getQuerier(ctx)
	query := `
		SELECT id, gateway_transaction_id, gateway, status, amount::text, currency, webhook_data, transaction_id, created_at
		FROM gateway_transactions
		WHERE gateway_transaction_id = $1
	`

	var (
		id            uuid.UUID
		gwTxID        string
		gateway       string
		status        string
		amountStr     string
		currencyCode  string
		webhookData   []byte
		transactionID *uuid.UUID
		createdAt     time.Time
	)
	err := q.QueryRow(ctx, query, gatewayTransactionID).Scan(
		&id, &gwTxID, &gateway, &status, &amountStr, &currencyCode,
		&webhookData, &transactionID, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan gateway transaction: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}
	amount, err := valueobjects.NewMoneyFromStored(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in database: %w", err)
	}

	return entities.ReconstructGatewayTransaction(
		id, gwTxID, gateway, status, amount, webhookData, transactionID, createdAt,
	), nil
}
