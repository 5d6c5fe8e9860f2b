package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/application/usecases/partner"
	"github.com/payflow/payflow/internal/domain/entities"
)

// AdminHandler serves the back-office surface: partner lifecycle and API key
// management. Auth is the admin token middleware, not partner keys.
type AdminHandler struct {
	partners *partner.Service
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(partners *partner.Service) *AdminHandler {
	return &AdminHandler{partners: partners}
}

type createPartnerRequest struct {
	Name       string `json:"name" binding:"required,max=200"`
	WebhookURL string `json:"webhookUrl" binding:"omitempty,url,max=2000"`
}

// CreatePartner registers a tenant in the pending state.
func (h *AdminHandler) CreatePartner(c *gin.Context) {
	var req createPartnerRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.partners.Create(c.Request.Context(), req.Name, req.WebhookURL)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPartnerResponse(p))
}

// ListPartners returns tenants, paginated.
func (h *AdminHandler) ListPartners(c *gin.Context) {
	limit, offset, ok := parseLimitOffset(c)
	if !ok {
		return
	}
	ps, err := h.partners.List(c.Request.Context(), offset, limit)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	out := make([]partnerResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPartnerResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"partners": out, "limit": limit, "offset": offset})
}

// GetPartner returns one tenant.
func (h *AdminHandler) GetPartner(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.partners.Get(c.Request.Context(), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPartnerResponse(p))
}

// Lifecycle transitions. Approve and Reject leave pending one-way; Suspend
// and Reactivate toggle an approved partner.

func (h *AdminHandler) ApprovePartner(c *gin.Context) {
	h.transition(c, h.partners.Approve)
}

// RejectPartner also deactivates every production key the partner holds.
func (h *AdminHandler) RejectPartner(c *gin.Context) {
	h.transition(c, h.partners.Reject)
}

func (h *AdminHandler) SuspendPartner(c *gin.Context) {
	h.transition(c, h.partners.Suspend)
}

func (h *AdminHandler) ReactivatePartner(c *gin.Context) {
	h.transition(c, h.partners.Reactivate)
}

func (h *AdminHandler) transition(c *gin.Context, apply func(ctx context.Context, id uuid.UUID) (*entities.Partner, error)) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := apply(c.Request.Context(), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPartnerResponse(p))
}

type setWebhookRequest struct {
	URL string `json:"url" binding:"required,url,max=2000"`
}

// SetWebhookURL points the partner's outbound event deliveries at a new URL.
func (h *AdminHandler) SetWebhookURL(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req setWebhookRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.partners.SetWebhookURL(c.Request.Context(), id, req.URL)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPartnerResponse(p))
}

type issueKeyRequest struct {
	Environment string     `json:"environment" binding:"required,oneof=sandbox production"`
	Permissions []string   `json:"permissions" binding:"omitempty,max=10"`
	ExpiresAt   *time.Time `json:"expiresAt" binding:"omitempty"`
}

// IssueKey creates an API key. The plaintext secret appears in this response
// and nowhere else, ever.
func (h *AdminHandler) IssueKey(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req issueKeyRequest
	if !bindJSON(c, &req) {
		return
	}

	perms := make([]entities.Permission, 0, len(req.Permissions))
	for _, raw := range req.Permissions {
		p := entities.Permission(raw)
		if !p.IsValid() {
			common.ValidationFailed(c, []common.FieldDetail{{Field: "permissions", Message: "unknown permission " + raw}})
			return
		}
		perms = append(perms, p)
	}

	issued, err := h.partners.IssueKey(c.Request.Context(), id, partner.IssueKeyInput{
		Environment: entities.Environment(req.Environment),
		Permissions: perms,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAPIKeyResponse(issued.Key, issued.Secret))
}

// ListKeys returns the partner's keys. Hashes and secrets never appear.
func (h *AdminHandler) ListKeys(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	keys, err := h.partners.ListKeys(c.Request.Context(), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k, ""))
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// RevokeKey deactivates one key.
func (h *AdminHandler) RevokeKey(c *gin.Context) {
	partnerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	keyID, ok := pathUUID(c, "keyId")
	if !ok {
		return
	}
	if err := h.partners.RevokeKey(c.Request.Context(), partnerID, keyID); err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// RotateKey issues a replacement and revokes the old key atomically.
func (h *AdminHandler) RotateKey(c *gin.Context) {
	partnerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	keyID, ok := pathUUID(c, "keyId")
	if !ok {
		return
	}
	issued, err := h.partners.RotateKey(c.Request.Context(), partnerID, keyID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAPIKeyResponse(issued.Key, issued.Secret))
}
