package partner

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/infrastructure/persistence/memory"
)

func newService(t *testing.T) (*Service, ports.Repositories) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := memory.NewStore().Repositories()
	return NewService(repos.Partners, repos.APIKeys, memory.NewUnitOfWork(), logger), repos
}

func TestService_CreateAndLifecycle(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "Acme Corp", "https://acme.example/webhooks")
	require.NoError(t, err)
	assert.Equal(t, entities.PartnerStatusPending, p.Status())
	assert.Equal(t, "https://acme.example/webhooks", p.WebhookURL())

	approved, err := s.Approve(ctx, p.ID())
	require.NoError(t, err)
	assert.True(t, approved.IsApproved())

	suspended, err := s.Suspend(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.PartnerStatusSuspended, suspended.Status())

	reactivated, err := s.Reactivate(ctx, p.ID())
	require.NoError(t, err)
	assert.True(t, reactivated.IsApproved())

	// Invalid transitions surface as business rule violations.
	_, err = s.Approve(ctx, p.ID())
	assert.True(t, errors.IsBusinessRuleViolation(err))
}

func TestService_RejectRevokesProductionKeys(t *testing.T) {
	s, repos := newService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "Doomed Inc", "")
	require.NoError(t, err)

	production, err := s.IssueKey(ctx, p.ID(), IssueKeyInput{Environment: entities.EnvironmentProduction})
	require.NoError(t, err)
	sandbox, err := s.IssueKey(ctx, p.ID(), IssueKeyInput{Environment: entities.EnvironmentSandbox})
	require.NoError(t, err)

	_, err = s.Reject(ctx, p.ID())
	require.NoError(t, err)

	prodKey, err := repos.APIKeys.FindByID(ctx, production.Key.ID())
	require.NoError(t, err)
	assert.False(t, prodKey.Active(), "production keys die with the rejection")

	sandboxKey, err := repos.APIKeys.FindByID(ctx, sandbox.Key.ID())
	require.NoError(t, err)
	assert.True(t, sandboxKey.Active(), "sandbox keys survive")
}

func TestService_IssueKey(t *testing.T) {
	s, repos := newService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "Keyed Co", "")
	require.NoError(t, err)

	t.Run("full permissions by default", func(t *testing.T) {
		issued, err := s.IssueKey(ctx, p.ID(), IssueKeyInput{Environment: entities.EnvironmentSandbox})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(issued.Secret, "sk_test_"))
		assert.ElementsMatch(t, entities.AllPermissions, issued.Key.Permissions())

		// Only the hash is stored.
		stored, err := repos.APIKeys.FindByHash(ctx, entities.HashSecret(issued.Secret))
		require.NoError(t, err)
		assert.Equal(t, issued.Key.ID(), stored.ID())
		assert.NotContains(t, stored.Hash(), issued.Secret)
	})

	t.Run("scoped permissions", func(t *testing.T) {
		issued, err := s.IssueKey(ctx, p.ID(), IssueKeyInput{
			Environment: entities.EnvironmentProduction,
			Permissions: []entities.Permission{entities.PermissionWalletsRead},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(issued.Secret, "sk_live_"))
		assert.True(t, issued.Key.HasPermission(entities.PermissionWalletsRead))
		assert.False(t, issued.Key.HasPermission(entities.PermissionWalletsWrite))
	})

	t.Run("unknown partner", func(t *testing.T) {
		_, err := s.IssueKey(ctx, uuid.New(), IssueKeyInput{Environment: entities.EnvironmentSandbox})
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestService_RevokeKey(t *testing.T) {
	s, repos := newService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "Revoked Co", "")
	require.NoError(t, err)
	issued, err := s.IssueKey(ctx, p.ID(), IssueKeyInput{Environment: entities.EnvironmentSandbox})
	require.NoError(t, err)

	// A foreign partner id cannot revoke the key.
	err = s.RevokeKey(ctx, uuid.New(), issued.Key.ID())
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, s.RevokeKey(ctx, p.ID(), issued.Key.ID()))
	stored, err := repos.APIKeys.FindByID(ctx, issued.Key.ID())
	require.NoError(t, err)
	assert.False(t, stored.Active())
}

func TestService_RotateKey(t *testing.T) {
	s, repos := newService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "Rotated Co", "")
	require.NoError(t, err)
	old, err := s.IssueKey(ctx, p.ID(), IssueKeyInput{
		Environment: entities.EnvironmentProduction,
		Permissions: []entities.Permission{entities.PermissionPayoutsWrite},
	})
	require.NoError(t, err)

	rotated, err := s.RotateKey(ctx, p.ID(), old.Key.ID())
	require.NoError(t, err)
	assert.NotEqual(t, old.Key.ID(), rotated.Key.ID())
	assert.NotEqual(t, old.Secret, rotated.Secret)
	assert.Equal(t, old.Key.Environment(), rotated.Key.Environment())
	assert.Equal(t, old.Key.Permissions(), rotated.Key.Permissions())

	oldStored, err := repos.APIKeys.FindByID(ctx, old.Key.ID())
	require.NoError(t, err)
	assert.False(t, oldStored.Active())

	newStored, err := repos.APIKeys.FindByID(ctx, rotated.Key.ID())
	require.NoError(t, err)
	assert.True(t, newStored.Active())
}

func TestService_SetWebhookURL(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "Hooked Co", "")
	require.NoError(t, err)

	updated, err := s.SetWebhookURL(ctx, p.ID(), "https://hooked.example/events")
	require.NoError(t, err)
	assert.Equal(t, "https://hooked.example/events", updated.WebhookURL())

	got, err := s.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, "https://hooked.example/events", got.WebhookURL())
}
