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
)

var _ ports.PartnerRepository = (*PartnerRepository)(nil)

// PartnerRepository implements ports.PartnerRepository. The settings map is
// stored as JSONB.
type PartnerRepository struct {
	pool *pgxpool.Pool
}

// NewPartnerRepository creates a PartnerRepository.
func NewPartnerRepository(pool *pgxpool.Pool) *PartnerRepository {
	return &PartnerRepository{pool: pool}
}

func (r *PartnerRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const partnerColumns = `id, name, status, webhook_url, settings, created_at, updated_at`

// Save upserts a partner including its settings map.
func (r *PartnerRepository) Save(ctx context.Context, partner *entities.Partner) error {
	q := r.getQuerier(ctx)

	settings, err := json.Marshal(partner.Settings())
	if err != nil {
		return fmt.Errorf("failed to encode partner settings: %w", err)
	}

	query := `
		INSERT INTO partners (id, name, status, webhook_url, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			webhook_url = EXCLUDED.webhook_url,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
	`
	_, err = q.Exec(ctx, query,
		partner.ID(),
		partner.Name(),
		string(partner.Status()),
		partner.WebhookURL(),
		settings,
		partner.CreatedAt(),
		partner.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save partner: %w", err)
	}
	return nil
}

// FindByID loads a partner.
func (r *PartnerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`
	return scanPartner(q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate loads a partner under a row lock. The lock serializes
// concurrent clearing-wallet creation for the partner.
func (r *PartnerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1 FOR UPDATE`
	return scanPartner(q.QueryRow(ctx, query, id))
}

// List returns partners, newest first.
func (r *PartnerRepository) List(ctx context.Context, offset, limit int) ([]*entities.Partner, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + partnerColumns + ` FROM partners ORDER BY created_at DESC OFFSET $1 LIMIT $2`

	rows, err := q.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	var partners []*entities.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partner rows: %w", err)
	}
	return partners, nil
}

func scanPartner(row pgx.Row) (*entities.Partner, error) {
	var (
		id                   uuid.UUID
		name, status         string
		webhookURL           string
		settings             []byte
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &name, &status, &webhookURL, &settings, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan partner: %w", err)
	}

	settingsMap := make(map[string]string)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &settingsMap); err != nil {
			return nil, fmt.Errorf("corrupt partner settings: %w", err)
		}
	}

	return entities.ReconstructPartner(
		id, name, entities.PartnerStatus(status), webhookURL,
		settingsMap, createdAt, updatedAt,
	), nil
}
