// Package entities - APIKey is a partner credential. Only the SHA-256 hex
// digest of the secret is ever stored; the plaintext is revealed exactly
// once at creation time.
package entities

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/errors"
)

// Environment distinguishes sandbox keys (mock gateway) from production.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IsValid checks if the environment is valid.
func (e Environment) IsValid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Permission is a capability string carried by an API key.
type Permission string

const (
	PermissionWalletsRead       Permission = "wallets:read"
	PermissionWalletsWrite      Permission = "wallets:write"
	PermissionTransactionsRead  Permission = "transactions:read"
	PermissionTransactionsWrite Permission = "transactions:write"
	PermissionPayoutsWrite      Permission = "payouts:write"
)

// AllPermissions lists every known permission, used when issuing full-access keys.
var AllPermissions = []Permission{
	PermissionWalletsRead,
	PermissionWalletsWrite,
	PermissionTransactionsRead,
	PermissionTransactionsWrite,
	PermissionPayoutsWrite,
}

// IsValid checks if the permission is one of the known strings.
func (p Permission) IsValid() bool {
	switch p {
	case PermissionWalletsRead, PermissionWalletsWrite,
		PermissionTransactionsRead, PermissionTransactionsWrite, PermissionPayoutsWrite:
		return true
	default:
		return false
	}
}

// APIKey is a hashed partner credential with a permission set.
type APIKey struct {
	id          uuid.UUID
	partnerID   uuid.UUID
	hash        string // hex SHA-256 of the secret
	environment Environment
	permissions []Permission
	active      bool
	expiresAt   *time.Time
	lastUsedAt  *time.Time
	createdAt   time.Time
}

// HashSecret computes the stored form of a key secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// GenerateSecret produces a new plaintext key secret for the environment:
// sk_test_... for sandbox, sk_live_... for production.
func GenerateSecret(env Environment) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	prefix := "sk_test_"
	if env == EnvironmentProduction {
		prefix = "sk_live_"
	}
	return prefix + hex.EncodeToString(buf), nil
}

// NewAPIKey creates an active key for a partner. The caller receives the
// plaintext secret separately from GenerateSecret; only the hash lives here.
func NewAPIKey(partnerID uuid.UUID, secretHash string, env Environment, permissions []Permission, expiresAt *time.Time) (*APIKey, error) {
	if partnerID == uuid.Nil {
		return nil, errors.ValidationError{Field: "partner_id", Message: "partner id is required"}
	}
	if secretHash == "" {
		return nil, errors.ValidationError{Field: "hash", Message: "secret hash is required"}
	}
	if !env.IsValid() {
		return nil, errors.ValidationError{Field: "environment", Message: "must be sandbox or production"}
	}
	for _, p := range permissions {
		if !p.IsValid() {
			return nil, errors.ValidationError{Field: "permissions", Message: fmt.Sprintf("unknown permission %q", p)}
		}
	}
	return &APIKey{
		id:          uuid.New(),
		partnerID:   partnerID,
		hash:        secretHash,
		environment: env,
		permissions: permissions,
		active:      true,
		expiresAt:   expiresAt,
		createdAt:   time.Now().UTC(),
	}, nil
}

// ReconstructAPIKey hydrates an APIKey from stored data.
func ReconstructAPIKey(
	id, partnerID uuid.UUID,
	hash string,
	env Environment,
	permissions []Permission,
	active bool,
	expiresAt, lastUsedAt *time.Time,
	createdAt time.Time,
) *APIKey {
	return &APIKey{
		id:          id,
		partnerID:   partnerID,
		hash:        hash,
		environment: env,
		permissions: permissions,
		active:      active,
		expiresAt:   expiresAt,
		lastUsedAt:  lastUsedAt,
		createdAt:   createdAt,
	}
}

func (k *APIKey) ID() uuid.UUID             { return k.id }
func (k *APIKey) PartnerID() uuid.UUID      { return k.partnerID }
func (k *APIKey) Hash() string              { return k.hash }
func (k *APIKey) Environment() Environment  { return k.environment }
func (k *APIKey) Permissions() []Permission { return k.permissions }
func (k *APIKey) Active() bool              { return k.active }
func (k *APIKey) ExpiresAt() *time.Time     { return k.expiresAt }
func (k *APIKey) LastUsedAt() *time.Time    { return k.lastUsedAt }
func (k *APIKey) CreatedAt() time.Time      { return k.createdAt }

// IsUsable reports whether the key may authenticate a request right now.
func (k *APIKey) IsUsable(now time.Time) bool {
	if !k.active {
		return false
	}
	if k.expiresAt != nil && now.After(*k.expiresAt) {
		return false
	}
	return true
}

// HasPermission reports whether the key carries the given permission.
func (k *APIKey) HasPermission(p Permission) bool {
	for _, have := range k.permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Deactivate revokes the key.
func (k *APIKey) Deactivate() {
	k.active = false
}

// TouchLastUsed records a successful authentication.
func (k *APIKey) TouchLastUsed(now time.Time) {
	t := now.UTC()
	k.lastUsedAt = &t
}
