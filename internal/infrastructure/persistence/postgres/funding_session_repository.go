package postgres

import (
	"context"
	"encoding/json"
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

var _ ports.FundingSessionRepository = (*FundingSessionRepository)(nil)

// FundingSessionRepository implements ports.FundingSessionRepository.
type FundingSessionRepository struct {
	pool *pgxpool.Pool
}

// NewFundingSessionRepository creates a FundingSessionRepository.
func NewFundingSessionRepository(pool *pgxpool.Pool) *FundingSessionRepository {
	return &FundingSessionRepository{pool: pool}
}

func (r *FundingSessionRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const fundingSessionColumns = `id, wallet_id, partner_id, gateway, payment_intent_id, amount::text, currency, status, expires_at, success_url, cancel_url, metadata, created_at, updated_at`

// Save inserts a session.
func (r *FundingSessionRepository) Save(ctx context.Context, session *entities.FundingSession) error {
	q := r.getQuerier(ctx)

	metadata, err := json.Marshal(session.Metadata())
	if err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}

	query := `
		INSERT INTO funding_sessions (id, wallet_id, partner_id, gateway, payment_intent_id, amount, currency, status, expires_at, success_url, cancel_url, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = q.Exec(ctx, query,
		session.ID(),
		session.WalletID(),
		session.PartnerID(),
		session.Gateway(),
		session.PaymentIntentID(),
		session.Amount().String(),
		session.Amount().Currency().Code(),
		string(session.Status()),
		session.ExpiresAt(),
		session.SuccessURL(),
		session.CancelURL(),
		metadata,
		session.CreatedAt(),
		session.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domainErrors.ErrEntityAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return domainErrors.ErrWalletNotFound
		}
		return fmt.Errorf("failed to save funding session: %w", err)
	}
	return nil
}

// Update persists a status transition.
func (r *FundingSessionRepository) Update(ctx context.Context, session *entities.FundingSession) error {
	q := r.getQuerier(ctx)
	query := `UPDATE funding_sessions SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := q.Exec(ctx, query, session.ID(), string(session.Status()), session.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to update funding session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrEntityNotFound
	}
	return nil
}

// FindByID loads one session.
func (r *FundingSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.FundingSession, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + fundingSessionColumns + ` FROM funding_sessions WHERE id = $1`
	return scanFundingSession(q.QueryRow(ctx, query, id))
}

// FindByPaymentIntentID resolves a processor intent id to its session.
func (r *FundingSessionRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entities.FundingSession, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + fundingSessionColumns + ` FROM funding_sessions WHERE payment_intent_id = $1`
	return scanFundingSession(q.QueryRow(ctx, query, paymentIntentID))
}

// ExpireStale marks non-terminal sessions past their deadline as expired.
func (r *FundingSessionRepository) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	q := r.getQuerier(ctx)
	query := `
		UPDATE funding_sessions
		SET status = $1, updated_at = $2
		WHERE status IN ($3, $4) AND expires_at < $2
	`
	result, err := q.Exec(ctx, query,
		string(entities.FundingSessionStatusExpired),
		now.UTC(),
		string(entities.FundingSessionStatusCreated),
		string(entities.FundingSessionStatusActive),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale sessions: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func scanFundingSession(row pgx.Row) (*entities.FundingSession, error) {
	var (
		id, walletID, partnerID  uuid.UUID
		gateway, paymentIntentID string
		amountStr                string
		currencyCode, status     string
		expiresAt                time.Time
		successURL, cancelURL    string
		metadata                 []byte
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(&id, &walletID, &partnerID, &gateway, &paymentIntentID, &amountStr,
		&currencyCode, &status, &expiresAt, &successURL, &cancelURL,
		&metadata, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan funding session: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}
	amount, err := valueobjects.NewMoneyFromStored(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in database: %w", err)
	}

	metadataMap := make(map[string]string)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &metadataMap); err != nil {
			return nil, fmt.Errorf("corrupt session metadata: %w", err)
		}
	}

	return entities.ReconstructFundingSession(
		id, walletID, partnerID, gateway, paymentIntentID, amount,
		entities.FundingSessionStatus(status), expiresAt,
		successURL, cancelURL, metadataMap, createdAt, updatedAt,
	), nil
}
