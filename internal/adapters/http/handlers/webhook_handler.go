package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/adapters/http/middleware"
	"github.com/payflow/payflow/internal/application/usecases/webhook"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// signatureHeaders maps a gateway name to the header carrying its signature.
var signatureHeaders = map[string]string{
	"stripe": "Stripe-Signature",
	"mock":   "PayFlow-Signature",
}

// WebhookHandler receives processor callbacks.
type WebhookHandler struct {
	processor *webhook.Processor
}

// NewWebhookHandler creates the inbound webhook handler.
func NewWebhookHandler(processor *webhook.Processor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive verifies and reconciles one delivery. The body stays raw bytes
// until the signature check passes. Duplicates are acknowledged 200 so the
// processor stops retrying; signature failures are 400 and never retried
// locally.
func (h *WebhookHandler) Receive(c *gin.Context) {
	gatewayName := c.Param("gateway")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		middleware.RecordWebhook(gatewayName, "rejected")
		common.RespondError(c, http.StatusBadRequest, common.KindValidation, "unreadable body")
		return
	}

	header := signatureHeaders[gatewayName]
	if header == "" {
		header = "PayFlow-Signature"
	}

	if err := h.processor.ProcessInbound(c.Request.Context(), gatewayName, body, c.GetHeader(header)); err != nil {
		middleware.RecordWebhook(gatewayName, "rejected")
		common.HandleDomainError(c, err)
		return
	}

	middleware.RecordWebhook(gatewayName, "ok")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
