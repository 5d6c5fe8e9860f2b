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

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

// LedgerRepository implements ports.LedgerRepository. The table is
// append-only: no UPDATE or DELETE statement exists in this file. A BIGSERIAL
// seq column gives entries a total order per wallet that timestamps cannot.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ledgerColumns = `id, transaction_id, wallet_id, entry_type, amount::text, currency, balance::text, description, created_at`

// Insert appends one entry.
func (r *LedgerRepository) Insert(ctx context.Context, entry *entities.LedgerEntry) error {
	q := r.getQuerier(ctx)
	query := `
		INSERT INTO ledger_entries (id, transaction_id, wallet_id, entry_type, amount, currency, balance, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.Exec(ctx, query,
		entry.ID(),
		entry.TransactionID(),
		entry.WalletID(),
		string(entry.Type()),
		entry.Amount().String(),
		entry.Currency().Code(),
		entry.Balance().String(),
		entry.Description(),
		entry.CreatedAt(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domainErrors.ErrWalletNotFound
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// LatestBalance returns the balance field of the wallet's most recent entry,
// or zero if the wallet has no entries. Correct only when the caller holds
// the wallet row lock across this read and the following Insert.
func (r *LedgerRepository) LatestBalance(ctx context.Context, walletID uuid.UUID, currency valueobjects.Currency) (valueobjects.Money, error) {
	q := r.getQuerier(ctx)
	query := `SELECT balance::text FROM ledger_entries WHERE wallet_id = $1 ORDER BY seq DESC LIMIT 1`

	var balanceStr string
	err := q.QueryRow(ctx, query, walletID).Scan(&balanceStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return valueobjects.Zero(currency), nil
		}
		return valueobjects.Money{}, fmt.Errorf("failed to read latest balance: %w", err)
	}
	return valueobjects.NewMoneyFromStored(balanceStr, currency)
}

// ListByTransaction returns a transaction's entries in posting order.
func (r *LedgerRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE transaction_id = $1 ORDER BY seq ASC`

	rows, err := q.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

// ListByWallet returns a wallet's entries, newest first.
func (r *LedgerRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, offset, limit int) ([]*entities.LedgerEntry, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE wallet_id = $1 ORDER BY seq DESC OFFSET $2 LIMIT $3`

	rows, err := q.Query(ctx, query, walletID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

func scanLedgerEntries(rows pgx.Rows) ([]*entities.LedgerEntry, error) {
	var entries []*entities.LedgerEntry
	for rows.Next() {
		var (
			id, transactionID, walletID uuid.UUID
			entryType, currencyCode     string
			amountStr, balanceStr       string
			description                 string
			createdAt                   time.Time
		)
		err := rows.Scan(&id, &transactionID, &walletID, &entryType,
			&amountStr, &currencyCode, &balanceStr, &description, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		currency, err := valueobjects.NewCurrency(currencyCode)
		if err != nil {
			return nil, fmt.Errorf("invalid currency in database: %w", err)
		}
		amount, err := valueobjects.NewMoneyFromStored(amountStr, currency)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in database: %w", err)
		}
		balance, err := valueobjects.NewMoneyFromStored(balanceStr, currency)
		if err != nil {
			return nil, fmt.Errorf("invalid balance in database: %w", err)
		}

		entries = append(entries, entities.ReconstructLedgerEntry(
			id, transactionID, walletID, entities.EntryType(entryType),
			amount, balance, description, createdAt,
		))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return entries, nil
}
