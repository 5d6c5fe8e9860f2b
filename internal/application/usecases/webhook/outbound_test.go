package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow/payflow/internal/domain/entities"
	domainEvents "github.com/payflow/payflow/internal/domain/events"
	"github.com/payflow/payflow/internal/infrastructure/persistence/memory"
)

func newNotifierEnv(t *testing.T, webhookURL string) (*Notifier, *entities.Partner) {
	t.Helper()
	repos := memory.NewStore().Repositories()
	partner, err := entities.NewPartner("Notified Partner")
	require.NoError(t, err)
	require.NoError(t, partner.Approve())
	if webhookURL != "" {
		partner.SetWebhookURL(webhookURL)
	}
	require.NoError(t, repos.Partners.Save(context.Background(), partner))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNotifier(repos.Partners, nil, "whsec_outbound", logger), partner
}

func TestNotifier_DeliversSignedEnvelope(t *testing.T) {
	var (
		gotBody      []byte
		gotEvent     string
		gotSignature string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		gotEvent = r.Header.Get("PayFlow-Event")
		gotSignature = r.Header.Get("PayFlow-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, partner := newNotifierEnv(t, server.URL)

	event := domainEvents.NewTransactionCompleted(uuid.New(), partner.ID(), "credit", "100.00", "USD")
	require.NoError(t, notifier.Handle(context.Background(), event))

	assert.Equal(t, "transaction.completed", gotEvent)
	assert.Equal(t, Sign("whsec_outbound", gotBody), gotSignature,
		"signature must verify against the raw body")

	var delivered struct {
		Event     string                 `json:"event"`
		Data      map[string]interface{} `json:"data"`
		PartnerID string                 `json:"partnerId"`
		Timestamp string                 `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &delivered))
	assert.Equal(t, "transaction.completed", delivered.Event)
	assert.Equal(t, partner.ID().String(), delivered.PartnerID)
	assert.Equal(t, "100.00", delivered.Data["amount"])
	assert.NotEmpty(t, delivered.Timestamp)
}

func TestNotifier_UsesPartnerSecretWhenSet(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("PayFlow-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repos := memory.NewStore().Repositories()
	partner, err := entities.NewPartner("Secret Partner")
	require.NoError(t, err)
	partner.SetWebhookURL(server.URL)
	partner.SetSetting("webhook_secret", "whsec_partner_own")
	require.NoError(t, repos.Partners.Save(context.Background(), partner))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := NewNotifier(repos.Partners, nil, "whsec_outbound", logger)

	event := domainEvents.NewPayoutInitiated(uuid.New(), partner.ID(), "dest_1", "10.00", "USD")
	require.NoError(t, notifier.Handle(context.Background(), event))

	assert.Equal(t, Sign("whsec_partner_own", gotBody), gotSignature)
	assert.NotEqual(t, Sign("whsec_outbound", gotBody), gotSignature)
}

func TestNotifier_SkipsPartnerWithoutURL(t *testing.T) {
	notifier, partner := newNotifierEnv(t, "")
	event := domainEvents.NewTransactionCompleted(uuid.New(), partner.ID(), "credit", "1.00", "USD")
	assert.NoError(t, notifier.Handle(context.Background(), event))
}

func TestNotifier_DeliveryFailuresAreSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	notifier, partner := newNotifierEnv(t, server.URL)
	event := domainEvents.NewTransactionCompleted(uuid.New(), partner.ID(), "credit", "1.00", "USD")

	// A rejecting endpoint must not surface an error to the publisher.
	assert.NoError(t, notifier.Handle(context.Background(), event))

	// Nor must a dead endpoint.
	server.Close()
	assert.NoError(t, notifier.Handle(context.Background(), event))
}

func TestNotifier_UnknownPartnerIsSkipped(t *testing.T) {
	notifier, _ := newNotifierEnv(t, "")
	event := domainEvents.NewTransactionCompleted(uuid.New(), uuid.New(), "credit", "1.00", "USD")
	assert.NoError(t, notifier.Handle(context.Background(), event))
}
