// Package entities - Partner is the B2B tenant that owns wallets and API
// keys. Every resource in the system is scoped to exactly one partner.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/errors"
)

// PartnerStatus represents the lifecycle state of a partner.
type PartnerStatus string

const (
	PartnerStatusPending   PartnerStatus = "pending"
	PartnerStatusApproved  PartnerStatus = "approved"
	PartnerStatusSuspended PartnerStatus = "suspended"
	PartnerStatusRejected  PartnerStatus = "rejected"
)

// IsValid checks if the partner status is valid.
func (s PartnerStatus) IsValid() bool {
	switch s {
	case PartnerStatusPending, PartnerStatusApproved, PartnerStatusSuspended, PartnerStatusRejected:
		return true
	default:
		return false
	}
}

// Partner represents a B2B tenant.
//
// State machine:
//
//	pending ──► approved ◄──► suspended
//	   │
//	   └──────► rejected (terminal)
type Partner struct {
	id         uuid.UUID
	name       string
	status     PartnerStatus
	webhookURL string
	settings   map[string]string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewPartner creates a partner in the pending state.
func NewPartner(name string) (*Partner, error) {
	if name == "" {
		return nil, errors.ValidationError{Field: "name", Message: "name is required"}
	}
	now := time.Now().UTC()
	return &Partner{
		id:        uuid.New(),
		name:      name,
		status:    PartnerStatusPending,
		settings:  make(map[string]string),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructPartner hydrates a Partner from stored data.
func ReconstructPartner(
	id uuid.UUID,
	name string,
	status PartnerStatus,
	webhookURL string,
	settings map[string]string,
	createdAt, updatedAt time.Time,
) *Partner {
	if settings == nil {
		settings = make(map[string]string)
	}
	return &Partner{
		id:         id,
		name:       name,
		status:     status,
		webhookURL: webhookURL,
		settings:   settings,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (p *Partner) ID() uuid.UUID         { return p.id }
func (p *Partner) Name() string          { return p.name }
func (p *Partner) Status() PartnerStatus { return p.status }
func (p *Partner) WebhookURL() string    { return p.webhookURL }
func (p *Partner) CreatedAt() time.Time  { return p.createdAt }
func (p *Partner) UpdatedAt() time.Time  { return p.updatedAt }

// Settings returns a copy of the opaque settings map.
func (p *Partner) Settings() map[string]string {
	out := make(map[string]string, len(p.settings))
	for k, v := range p.settings {
		out[k] = v
	}
	return out
}

// Setting returns one settings value.
func (p *Partner) Setting(key string) (string, bool) {
	v, ok := p.settings[key]
	return v, ok
}

// SetSetting stores one settings value.
func (p *Partner) SetSetting(key, value string) {
	p.settings[key] = value
	p.updatedAt = time.Now().UTC()
}

// ClearingWalletSettingKey returns the settings key under which the
// partner's clearing wallet for a currency is recorded. One clearing wallet
// exists per currency so double-entry posts never mix currencies.
func ClearingWalletSettingKey(currencyCode string) string {
	return "clearing_wallet_" + currencyCode
}

// IsApproved reports whether the partner may use the API.
func (p *Partner) IsApproved() bool {
	return p.status == PartnerStatusApproved
}

// Approve moves a pending partner to approved. One-way out of pending.
func (p *Partner) Approve() error {
	if p.status != PartnerStatusPending {
		return errors.NewBusinessRuleViolation(
			"INVALID_PARTNER_TRANSITION",
			"only pending partners can be approved",
			map[string]interface{}{"status": string(p.status)},
		)
	}
	p.status = PartnerStatusApproved
	p.updatedAt = time.Now().UTC()
	return nil
}

// Reject moves a pending partner to rejected. Terminal; the caller must
// also deactivate the partner's production API keys.
func (p *Partner) Reject() error {
	if p.status != PartnerStatusPending {
		return errors.NewBusinessRuleViolation(
			"INVALID_PARTNER_TRANSITION",
			"only pending partners can be rejected",
			map[string]interface{}{"status": string(p.status)},
		)
	}
	p.status = PartnerStatusRejected
	p.updatedAt = time.Now().UTC()
	return nil
}

// Suspend temporarily disables an approved partner. Reversible.
func (p *Partner) Suspend() error {
	if p.status != PartnerStatusApproved {
		return errors.NewBusinessRuleViolation(
			"INVALID_PARTNER_TRANSITION",
			"only approved partners can be suspended",
			map[string]interface{}{"status": string(p.status)},
		)
	}
	p.status = PartnerStatusSuspended
	p.updatedAt = time.Now().UTC()
	return nil
}

// Reactivate lifts a suspension.
func (p *Partner) Reactivate() error {
	if p.status != PartnerStatusSuspended {
		return errors.NewBusinessRuleViolation(
			"INVALID_PARTNER_TRANSITION",
			"only suspended partners can be reactivated",
			map[string]interface{}{"status": string(p.status)},
		)
	}
	p.status = PartnerStatusApproved
	p.updatedAt = time.Now().UTC()
	return nil
}

// SetWebhookURL updates the outbound webhook destination.
func (p *Partner) SetWebhookURL(url string) {
	p.webhookURL = url
	p.updatedAt = time.Now().UTC()
}
