package entities

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret_Prefixes(t *testing.T) {
	sandbox, err := GenerateSecret(EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sandbox, "sk_test_"))

	production, err := GenerateSecret(EnvironmentProduction)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(production, "sk_live_"))

	// Secrets are random; two draws never collide.
	other, err := GenerateSecret(EnvironmentSandbox)
	require.NoError(t, err)
	assert.NotEqual(t, sandbox, other)
}

func TestHashSecret_Deterministic(t *testing.T) {
	assert.Equal(t, HashSecret("sk_test_abc"), HashSecret("sk_test_abc"))
	assert.NotEqual(t, HashSecret("sk_test_abc"), HashSecret("sk_test_abd"))
	assert.Len(t, HashSecret("anything"), 64) // hex sha-256
}

func TestAPIKey_IsUsable(t *testing.T) {
	partnerID := uuid.New()
	now := time.Now()

	t.Run("active unexpired key", func(t *testing.T) {
		key, err := NewAPIKey(partnerID, HashSecret("s"), EnvironmentSandbox, AllPermissions, nil)
		require.NoError(t, err)
		assert.True(t, key.IsUsable(now))
	})

	t.Run("deactivated key", func(t *testing.T) {
		key, err := NewAPIKey(partnerID, HashSecret("s"), EnvironmentSandbox, AllPermissions, nil)
		require.NoError(t, err)
		key.Deactivate()
		assert.False(t, key.IsUsable(now))
	})

	t.Run("expired key", func(t *testing.T) {
		past := now.Add(-time.Hour)
		key, err := NewAPIKey(partnerID, HashSecret("s"), EnvironmentSandbox, AllPermissions, &past)
		require.NoError(t, err)
		assert.False(t, key.IsUsable(now))

		future := now.Add(time.Hour)
		key, err = NewAPIKey(partnerID, HashSecret("s"), EnvironmentSandbox, AllPermissions, &future)
		require.NoError(t, err)
		assert.True(t, key.IsUsable(now))
	})
}

func TestAPIKey_HasPermission(t *testing.T) {
	key, err := NewAPIKey(uuid.New(), HashSecret("s"), EnvironmentProduction,
		[]Permission{PermissionWalletsRead, PermissionTransactionsRead}, nil)
	require.NoError(t, err)

	assert.True(t, key.HasPermission(PermissionWalletsRead))
	assert.True(t, key.HasPermission(PermissionTransactionsRead))
	assert.False(t, key.HasPermission(PermissionWalletsWrite))
	assert.False(t, key.HasPermission(PermissionPayoutsWrite))
}

func TestNewAPIKey_Validation(t *testing.T) {
	_, err := NewAPIKey(uuid.Nil, HashSecret("s"), EnvironmentSandbox, nil, nil)
	assert.Error(t, err)

	_, err = NewAPIKey(uuid.New(), "", EnvironmentSandbox, nil, nil)
	assert.Error(t, err)

	_, err = NewAPIKey(uuid.New(), HashSecret("s"), Environment("staging"), nil, nil)
	assert.Error(t, err)

	_, err = NewAPIKey(uuid.New(), HashSecret("s"), EnvironmentSandbox, []Permission{"wallets:admin"}, nil)
	assert.Error(t, err)
}
