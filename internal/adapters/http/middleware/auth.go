package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/entities"
	"github.com/payflow/payflow/internal/pkg/logger"
)

// Gin context keys set by APIKeyAuth.
const (
	ContextPartnerIDKey = "auth_partner_id"
	ContextAPIKeyKey    = "auth_api_key"
)

// APIKeyAuth authenticates partner requests.
//
// The caller presents "Authorization: Bearer sk_(test|live)_...". The secret
// is hashed with SHA-256 and looked up; the key must be active and unexpired
// and its partner approved. Every failure is a uniform 401 so callers cannot
// probe which part failed. On success the partner id and key land in the gin
// context and lastUsedAt is updated best-effort.
func APIKeyAuth(keys ports.APIKeyRepository, partners ports.PartnerRepository, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthenticated(c)
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			unauthenticated(c)
			return
		}

		ctx := c.Request.Context()
		key, err := keys.FindByHash(ctx, entities.HashSecret(parts[1]))
		if err != nil {
			unauthenticated(c)
			return
		}
		if !key.IsUsable(time.Now()) {
			unauthenticated(c)
			return
		}

		partner, err := partners.FindByID(ctx, key.PartnerID())
		if err != nil || !partner.IsApproved() {
			unauthenticated(c)
			return
		}

		if err := keys.UpdateLastUsed(ctx, key.ID(), time.Now()); err != nil {
			log.WarnContext(ctx, "failed to record key usage", "key_id", key.ID().String(), "error", err)
		}

		c.Set(ContextPartnerIDKey, partner.ID())
		c.Set(ContextAPIKeyKey, key)
		c.Request = c.Request.WithContext(logger.WithPartnerID(ctx, partner.ID().String()))
		c.Next()
	}
}

// RequirePermission gates a route on one API key permission. Must run after
// APIKeyAuth.
func RequirePermission(p entities.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := AuthAPIKey(c)
		if key == nil || !key.HasPermission(p) {
			common.RespondError(c, http.StatusForbidden, common.KindForbidden, nil)
			return
		}
		c.Next()
	}
}

func unauthenticated(c *gin.Context) {
	common.RespondError(c, http.StatusUnauthorized, common.KindAuthentication, nil)
}

// AuthPartnerID returns the authenticated partner's id, or uuid.Nil.
func AuthPartnerID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ContextPartnerIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// AuthAPIKey returns the authenticated key, or nil.
func AuthAPIKey(c *gin.Context) *entities.APIKey {
	if v, ok := c.Get(ContextAPIKeyKey); ok {
		if key, ok := v.(*entities.APIKey); ok {
			return key
		}
	}
	return nil
}

// AdminAuth guards the back-office routes with a shared token presented in
// X-Admin-Token. The interactive admin UI sits in front of this and is a
// separate system.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Admin-Token") != token {
			unauthenticated(c)
			return
		}
		c.Next()
	}
}
