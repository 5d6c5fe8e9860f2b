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
)

var _ ports.APIKeyRepository = (*APIKeyRepository)(nil)

// APIKeyRepository implements ports.APIKeyRepository. Only secret hashes are
// stored; permissions live in a text array column.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository creates an APIKeyRepository.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

func (r *APIKeyRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apiKeyColumns = `id, partner_id, hash, environment, permissions, active, expires_at, last_used_at, created_at`

// Save upserts a key.
func (r *APIKeyRepository) Save(ctx context.Context, key *entities.APIKey) error {
	q := r.getQuerier(ctx)

	perms := make([]string, len(key.Permissions()))
	for i, p := range key.Permissions() {
		perms[i] = string(p)
	}

	query := `
		INSERT INTO api_keys (id, partner_id, hash, environment, permissions, active, expires_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			last_used_at = EXCLUDED.last_used_at
	`
	_, err := q.Exec(ctx, query,
		key.ID(),
		key.PartnerID(),
		key.Hash(),
		string(key.Environment()),
		perms,
		key.Active(),
		key.ExpiresAt(),
		key.LastUsedAt(),
		key.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "api_keys_hash") {
			return domainErrors.ErrEntityAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return domainErrors.ErrEntityNotFound
		}
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// FindByID loads one key.
func (r *APIKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.APIKey, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return scanAPIKey(q.QueryRow(ctx, query, id))
}

// FindByHash resolves a presented secret's SHA-256 digest to a key.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*entities.APIKey, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE hash = $1`
	return scanAPIKey(q.QueryRow(ctx, query, hash))
}

// ListByPartner returns the partner's keys, newest first.
func (r *APIKeyRepository) ListByPartner(ctx context.Context, partnerID uuid.UUID) ([]*entities.APIKey, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE partner_id = $1 ORDER BY created_at DESC`

	rows, err := q.Query(ctx, query, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*entities.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api key rows: %w", err)
	}
	return keys, nil
}

// DeactivateProductionKeys revokes every production key of a partner.
func (r *APIKeyRepository) DeactivateProductionKeys(ctx context.Context, partnerID uuid.UUID) error {
	q := r.getQuerier(ctx)
	query := `UPDATE api_keys SET active = FALSE WHERE partner_id = $1 AND environment = $2`
	if _, err := q.Exec(ctx, query, partnerID, string(entities.EnvironmentProduction)); err != nil {
		return fmt.Errorf("failed to deactivate production keys: %w", err)
	}
	return nil
}

// UpdateLastUsed records a successful authentication. Best-effort; callers
// ignore failures.
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	q := r.getQuerier(ctx)
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	if _, err := q.Exec(ctx, query, id, usedAt); err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}

func scanAPIKey(row pgx.Row) (*entities.APIKey, error) {
	var (
		id, partnerID         uuid.UUID
		hash, environment     string
		perms                 []string
		active                bool
		expiresAt, lastUsedAt *time.Time
		createdAt             time.Time
	)
	err := row.Scan(&id, &partnerID, &hash, &environment, &perms, &active, &expiresAt, &lastUsedAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}

	permissions := make([]entities.Permission, len(perms))
	for i, p := range perms {
		permissions[i] = entities.Permission(p)
	}

	return entities.ReconstructAPIKey(
		id, partnerID, hash, entities.Environment(environment),
		permissions, active, expiresAt, lastUsedAt, createdAt,
	), nil
}
