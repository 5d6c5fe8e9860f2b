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

var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository implements ports.TransactionRepository. Amounts are
// stored in a NUMERIC(20,2) column and cross the wire as fixed-point
// strings. The idempotency key column carries a unique index; empty keys are
// stored as NULL so they never collide.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const transactionColumns = `id, partner_id, type, status, amount::text, currency, from_wallet_id, to_wallet_id, idempotency_key, description, failure_reason, gateway, gateway_transaction_id, created_at, updated_at`

// Save inserts a transaction. A unique violation on the idempotency key
// surfaces as ErrDuplicateIdempotencyKey; the orchestrator recovers by
// returning the winner's record.
func (r *TransactionRepository) Save(ctx context.Context, tx *entities.Transaction) error {
	q := r.getQuerier(ctx)

	var idempotencyKey *string
	if k := tx.IdempotencyKey(); k != "" {
		idempotencyKey = &k
	}

	query := `
		INSERT INTO transactions (id, partner_id, type, status, amount, currency, from_wallet_id, to_wallet_id, idempotency_key, description, failure_reason, gateway, gateway_transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := q.Exec(ctx, query,
		tx.ID(),
		tx.PartnerID(),
		string(tx.Type()),
		string(tx.Status()),
		tx.Amount().String(),
		tx.Currency().Code(),
		tx.FromWalletID(),
		tx.ToWalletID(),
		idempotencyKey,
		tx.Description(),
		tx.FailureReason(),
		tx.Gateway(),
		tx.GatewayTransactionID(),
		tx.CreatedAt(),
		tx.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "transactions_idempotency_key") {
			return domainErrors.ErrDuplicateIdempotencyKey
		}
		if isUniqueViolation(err, "") {
			return domainErrors.ErrEntityAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return domainErrors.ErrWalletNotFound
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// Update persists a status transition and gateway attachment. Everything
// else is immutable after insert.
func (r *TransactionRepository) Update(ctx context.Context, tx *entities.Transaction) error {
	q := r.getQuerier(ctx)
	query := `
		UPDATE transactions SET
			status = $2,
			failure_reason = $3,
			gateway = $4,
			gateway_transaction_id = $5,
			updated_at = $6
		WHERE id = $1
	`
	result, err := q.Exec(ctx, query,
		tx.ID(),
		string(tx.Status()),
		tx.FailureReason(),
		tx.Gateway(),
		tx.GatewayTransactionID(),
		tx.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrEntityNotFound
	}
	return nil
}

// FindByID loads one transaction.
func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(q.QueryRow(ctx, query, id))
}

// FindByIdempotencyKey returns ErrEntityNotFound when the key is unused.
func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return scanTransaction(q.QueryRow(ctx, query, key))
}

// ListByWallet returns transactions touching the wallet on either side,
// newest first, with optional type and status filters.
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, filter ports.TransactionFilter, offset, limit int) ([]*entities.Transaction, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE (from_wallet_id = $1 OR to_wallet_id = $1)`
	args := []interface{}{walletID}
	argNum := 2

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(*filter.Type))
		argNum++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(*filter.Status))
		argNum++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC OFFSET $%d LIMIT $%d", argNum, argNum+1)
	args = append(args, offset, limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*entities.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txs, nil
}

func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var (
		id, partnerID                 uuid.UUID
		txType, status                string
		amountStr                     string
		currencyCode                  string
		fromWalletID, toWalletID      *uuid.UUID
		idempotencyKey                *string
		description, failureReason    string
		gateway, gatewayTransactionID string
		createdAt, updatedAt          time.Time
	)
	err := row.Scan(&id, &partnerID, &txType, &status, &amountStr, &currencyCode,
		&fromWalletID, &toWalletID, &idempotencyKey, &description, &failureReason,
		&gateway, &gatewayTransactionID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}
	amount, err := valueobjects.NewMoneyFromStored(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in database: %w", err)
	}

	key := ""
	if idempotencyKey != nil {
		key = *idempotencyKey
	}

	return entities.ReconstructTransaction(
		id, partnerID,
		entities.TransactionType(txType),
		entities.TransactionStatus(status),
		amount, fromWalletID, toWalletID,
		key, description, failureReason,
		gateway, gatewayTransactionID,
		createdAt, updatedAt,
	), nil
}
