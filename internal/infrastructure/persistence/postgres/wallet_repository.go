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

var _ ports.WalletRepository = (*WalletRepository)(nil)

// WalletRepository implements ports.WalletRepository. Wallet rows carry no
// balance; balances live in ledger_entries. The rows exist to be locked:
// SELECT ... FOR UPDATE on a wallet serializes every post touching it.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a WalletRepository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func (r *WalletRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const walletColumns = `id, partner_id, external_user_id, external_wallet_id, name, currency, status, is_clearing, created_at, updated_at`

// Save upserts a wallet. A duplicate (partner_id, external_wallet_id) pair
// surfaces as ErrEntityAlreadyExists.
func (r *WalletRepository) Save(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO wallets (id, partner_id, external_user_id, external_wallet_id, name, currency, status, is_clearing, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := q.Exec(ctx, query,
		wallet.ID(),
		wallet.PartnerID(),
		wallet.ExternalUserID(),
		wallet.ExternalWalletID(),
		wallet.Name(),
		wallet.Currency().Code(),
		string(wallet.Status()),
		wallet.IsClearing(),
		wallet.CreatedAt(),
		wallet.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "wallets_partner_external") {
			return domainErrors.ErrEntityAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return domainErrors.ErrEntityNotFound
		}
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

// FindByID loads a wallet without locking.
func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate loads a wallet under a row lock, held until the
// enclosing unit of work commits.
func (r *WalletRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(q.QueryRow(ctx, query, id))
}

// FindByExternalID resolves a partner-supplied wallet id.
func (r *WalletRepository) FindByExternalID(ctx context.Context, partnerID uuid.UUID, externalWalletID string) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE partner_id = $1 AND external_wallet_id = $2`
	return scanWallet(q.QueryRow(ctx, query, partnerID, externalWalletID))
}

// ListByPartner returns the partner's wallets, clearing wallets excluded,
// newest first.
func (r *WalletRepository) ListByPartner(ctx context.Context, partnerID uuid.UUID, offset, limit int) ([]*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE partner_id = $1 AND is_clearing = FALSE
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := q.Query(ctx, query, partnerID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*entities.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

func scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id, partnerID                      uuid.UUID
		externalUserID, externalWalletID   *string
		name, currencyCode, status         string
		isClearing                         bool
		createdAt, updatedAt               time.Time
	)
	err := row.Scan(&id, &partnerID, &externalUserID, &externalWalletID,
		&name, &currencyCode, &status, &isClearing, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}

	return entities.ReconstructWallet(
		id, partnerID, externalUserID, externalWalletID,
		name, currency, entities.WalletStatus(status), isClearing,
		createdAt, updatedAt,
	), nil
}
