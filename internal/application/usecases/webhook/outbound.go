package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/events"
)

// Partner settings key holding a per-partner signing secret. When absent the
// notifier falls back to the service-wide secret.
const webhookSecretSettingKey = "webhook_secret"

const notifyTimeout = 10 * time.Second

// envelope is the JSON body delivered to partner webhook endpoints.
type envelope struct {
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	PartnerID string                 `json:"partnerId"`
	Timestamp string                 `json:"timestamp"`
}

// Notifier delivers domain events to partner webhook URLs. Delivery is
// fire-and-forget: failures are logged and dropped, never retried, and never
// affect the transaction that raised the event.
type Notifier struct {
	partners      ports.PartnerRepository
	client        *http.Client
	defaultSecret string
	logger        *slog.Logger
}

// NewNotifier creates the outbound notifier. A nil client gets a default
// with a 10 second timeout.
func NewNotifier(partners ports.PartnerRepository, client *http.Client, defaultSecret string, logger *slog.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: notifyTimeout}
	}
	return &Notifier{
		partners:      partners,
		client:        client,
		defaultSecret: defaultSecret,
		logger:        logger,
	}
}

// Handle implements ports.EventHandler. Partners without a webhook URL are
// skipped silently.
func (n *Notifier) Handle(ctx context.Context, event events.DomainEvent) error {
	partner, err := n.partners.FindByID(ctx, event.PartnerID())
	if err != nil {
		n.logger.Warn("webhook fan-out: partner lookup failed",
			"partner_id", event.PartnerID().String(), "error", err)
		return nil
	}
	if partner.WebhookURL() == "" {
		return nil
	}

	body, err := json.Marshal(envelope{
		Event:     event.EventType(),
		Data:      event.Payload(),
		PartnerID: partner.ID().String(),
		Timestamp: event.OccurredAt().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook body: %w", err)
	}

	secret := n.defaultSecret
	if s, ok := partner.Setting(webhookSecretSettingKey); ok && s != "" {
		secret = s
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, partner.WebhookURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PayFlow-Event", event.EventType())
	req.Header.Set("PayFlow-Signature", Sign(secret, body))

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			"partner_id", partner.ID().String(), "event_type", event.EventType(), "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook delivery rejected",
			"partner_id", partner.ID().String(), "event_type", event.EventType(), "status", resp.StatusCode)
		return nil
	}
	n.logger.Info("webhook delivered",
		"partner_id", partner.ID().String(), "event_type", event.EventType(), "status", resp.StatusCode)
	return nil
}

// Sign computes the hex HMAC-SHA256 signature carried in PayFlow-Signature.
// Partners recompute it over the raw body to authenticate deliveries.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
