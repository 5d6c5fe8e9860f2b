// Package partner implements the back-office operations: tenant lifecycle
// (approve, reject, suspend, reactivate) and API key issuance. These are
// admin-only; partners never manage themselves.
package partner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
)

// Service bundles the admin operations.
type Service struct {
	partners ports.PartnerRepository
	keys     ports.APIKeyRepository
	uow      ports.UnitOfWork
	logger   *slog.Logger
}

// NewService creates the partner admin service.
func NewService(partners ports.PartnerRepository, keys ports.APIKeyRepository, uow ports.UnitOfWork, logger *slog.Logger) *Service {
	return &Service{partners: partners, keys: keys, uow: uow, logger: logger}
}

// Create registers a new partner in the pending state.
func (s *Service) Create(ctx context.Context, name, webhookURL string) (*entities.Partner, error) {
	p, err := entities.NewPartner(name)
	if err != nil {
		return nil, err
	}
	if webhookURL != "" {
		p.SetWebhookURL(webhookURL)
	}
	if err := s.partners.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads one partner.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	return s.partners.FindByID(ctx, id)
}

// List returns partners with pagination.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*entities.Partner, error) {
	return s.partners.List(ctx, offset, limit)
}

// Approve moves a pending partner to approved, enabling its API keys.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	return s.transition(ctx, id, (*entities.Partner).Approve)
}

// Reject moves a pending partner to rejected and revokes every production
// key it holds, in one unit of work.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	var p *entities.Partner
	err := s.uow.Execute(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.partners.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := p.Reject(); err != nil {
			return err
		}
		if err := s.partners.Save(txCtx, p); err != nil {
			return err
		}
		return s.keys.DeactivateProductionKeys(txCtx, id)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Suspend temporarily disables an approved partner.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	return s.transition(ctx, id, (*entities.Partner).Suspend)
}

// Reactivate lifts a suspension.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*entities.Partner, error) {
	return s.transition(ctx, id, (*entities.Partner).Reactivate)
}

// SetWebhookURL updates the partner's outbound webhook destination.
func (s *Service) SetWebhookURL(ctx context.Context, id uuid.UUID, url string) (*entities.Partner, error) {
	p, err := s.partners.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.SetWebhookURL(url)
	if err := s.partners.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, apply func(*entities.Partner) error) (*entities.Partner, error) {
	var p *entities.Partner
	err := s.uow.Execute(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.partners.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		return s.partners.Save(txCtx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// IssuedKey pairs a stored key with its plaintext secret. The secret exists
// only in this value and in the creation response; it is never stored.
type IssuedKey struct {
	Key    *entities.APIKey
	Secret string
}

// IssueKeyInput carries an API key issuance request. Empty permissions grant
// the full set.
type IssueKeyInput struct {
	Environment entities.Environment
	Permissions []entities.Permission
	ExpiresAt   *time.Time
}

// IssueKey creates a new API key for the partner and returns the plaintext
// secret exactly once.
func (s *Service) IssueKey(ctx context.Context, partnerID uuid.UUID, in IssueKeyInput) (*IssuedKey, error) {
	if _, err := s.partners.FindByID(ctx, partnerID); err != nil {
		return nil, err
	}

	perms := in.Permissions
	if len(perms) == 0 {
		perms = entities.AllPermissions
	}

	secret, err := entities.GenerateSecret(in.Environment)
	if err != nil {
		return nil, err
	}
	key, err := entities.NewAPIKey(partnerID, entities.HashSecret(secret), in.Environment, perms, in.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.keys.Save(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}
	return &IssuedKey{Key: key, Secret: secret}, nil
}

// RevokeKey deactivates one key. The key must belong to the partner.
func (s *Service) RevokeKey(ctx context.Context, partnerID, keyID uuid.UUID) error {
	key, err := s.keys.FindByID(ctx, keyID)
	if err != nil {
		return err
	}
	if key.PartnerID() != partnerID {
		return errors.ErrEntityNotFound
	}
	key.Deactivate()
	return s.keys.Save(ctx, key)
}

// RotateKey issues a replacement with the old key's environment and
// permissions, then revokes the old key. Both writes share a unit of work so
// the partner is never left without the new credential.
func (s *Service) RotateKey(ctx context.Context, partnerID, keyID uuid.UUID) (*IssuedKey, error) {
	old, err := s.keys.FindByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if old.PartnerID() != partnerID {
		return nil, errors.ErrEntityNotFound
	}

	secret, err := entities.GenerateSecret(old.Environment())
	if err != nil {
		return nil, err
	}
	replacement, err := entities.NewAPIKey(
		partnerID, entities.HashSecret(secret), old.Environment(), old.Permissions(), old.ExpiresAt())
	if err != nil {
		return nil, err
	}

	err = s.uow.Execute(ctx, func(txCtx context.Context) error {
		if err := s.keys.Save(txCtx, replacement); err != nil {
			return err
		}
		old.Deactivate()
		return s.keys.Save(txCtx, old)
	})
	if err != nil {
		return nil, err
	}
	return &IssuedKey{Key: replacement, Secret: secret}, nil
}

// ListKeys returns the partner's keys, hashes included, secrets never.
func (s *Service) ListKeys(ctx context.Context, partnerID uuid.UUID) ([]*entities.APIKey, error) {
	return s.keys.ListByPartner(ctx, partnerID)
}
