package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/infrastructure/persistence/memory"
)

type authEnv struct {
	repos   ports.Repositories
	partner *entities.Partner
	secret  string
	key     *entities.APIKey
}

func newAuthEnv(t *testing.T, approve bool, permissions []entities.Permission) *authEnv {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	partner, err := entities.NewPartner("Auth Partner")
	require.NoError(t, err)
	if approve {
		require.NoError(t, partner.Approve())
	}
	require.NoError(t, repos.Partners.Save(ctx, partner))

	secret, err := entities.GenerateSecret(entities.EnvironmentSandbox)
	require.NoError(t, err)
	if len(permissions) == 0 {
		permissions = entities.AllPermissions
	}
	key, err := entities.NewAPIKey(partner.ID(), entities.HashSecret(secret), entities.EnvironmentSandbox, permissions, nil)
	require.NoError(t, err)
	require.NoError(t, repos.APIKeys.Save(ctx, key))

	return &authEnv{repos: repos, partner: partner, secret: secret, key: key}
}

func (e *authEnv) router(extra ...gin.HandlerFunc) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gin.New()
	router.Use(APIKeyAuth(e.repos.APIKeys, e.repos.Partners, logger))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"partnerId": AuthPartnerID(c).String()})
	})
	router.GET("/test", handlers...)
	return router
}

func get(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/test", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	e := newAuthEnv(t, true, nil)
	w := get(e.router(), "Bearer "+e.secret)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), e.partner.ID().String())

	// Successful auth stamps lastUsedAt.
	stored, err := e.repos.APIKeys.FindByID(context.Background(), e.key.ID())
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsedAt())
}

func TestAPIKeyAuth_UniformUnauthorized(t *testing.T) {
	e := newAuthEnv(t, true, nil)
	router := e.router()

	// Every failure mode returns the same body so callers cannot probe
	// which check rejected them.
	cases := map[string]string{
		"missing header":   "",
		"not bearer":       "Basic " + e.secret,
		"empty credential": "Bearer ",
		"unknown secret":   "Bearer sk_test_0000000000000000000000000000000000000000000000",
	}
	for name, header := range cases {
		w := get(router, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.JSONEq(t, `{"error":"authentication"}`, w.Body.String(), name)
	}
}

func TestAPIKeyAuth_UnapprovedPartner(t *testing.T) {
	e := newAuthEnv(t, false, nil)
	w := get(e.router(), "Bearer "+e.secret)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyAuth_SuspendedPartner(t *testing.T) {
	e := newAuthEnv(t, true, nil)
	require.NoError(t, e.partner.Suspend())
	require.NoError(t, e.repos.Partners.Save(context.Background(), e.partner))

	w := get(e.router(), "Bearer "+e.secret)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyAuth_RevokedKey(t *testing.T) {
	e := newAuthEnv(t, true, nil)
	e.key.Deactivate()
	require.NoError(t, e.repos.APIKeys.Save(context.Background(), e.key))

	w := get(e.router(), "Bearer "+e.secret)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyAuth_ExpiredKey(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	partner, err := entities.NewPartner("Expired Partner")
	require.NoError(t, err)
	require.NoError(t, partner.Approve())
	require.NoError(t, repos.Partners.Save(ctx, partner))

	secret, err := entities.GenerateSecret(entities.EnvironmentSandbox)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	key, err := entities.NewAPIKey(partner.ID(), entities.HashSecret(secret), entities.EnvironmentSandbox, entities.AllPermissions, &past)
	require.NoError(t, err)
	require.NoError(t, repos.APIKeys.Save(ctx, key))

	e := &authEnv{repos: repos, partner: partner, secret: secret, key: key}
	w := get(e.router(), "Bearer "+secret)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermission(t *testing.T) {
	e := newAuthEnv(t, true, []entities.Permission{entities.PermissionWalletsRead})

	t.Run("granted", func(t *testing.T) {
		router := e.router(RequirePermission(entities.PermissionWalletsRead))
		w := get(router, "Bearer "+e.secret)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		router := e.router(RequirePermission(entities.PermissionPayoutsWrite))
		w := get(router, "Bearer "+e.secret)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"error":"forbidden"}`, w.Body.String())
	})
}

func TestAdminAuth(t *testing.T) {
	newAdminRouter := func(token string) *gin.Engine {
		router := gin.New()
		router.Use(AdminAuth(token))
		router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}
	adminGet := func(router *gin.Engine, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/admin", nil)
		if token != "" {
			req.Header.Set("X-Admin-Token", token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("valid token", func(t *testing.T) {
		w := adminGet(newAdminRouter("sekrit"), "sekrit")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		w := adminGet(newAdminRouter("sekrit"), "guess")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := adminGet(newAdminRouter("sekrit"), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unconfigured token locks the routes", func(t *testing.T) {
		w := adminGet(newAdminRouter(""), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
