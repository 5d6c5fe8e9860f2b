package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/errors"
)

var _ ports.Gateway = (*Mock)(nil)

// Mock is a deterministic in-process processor for sandbox keys and tests.
// Ids are sequential, client secrets derive from the intent id, and nothing
// leaves the process. Webhook verification uses the shared signature scheme
// so signed test events exercise the same path as production.
type Mock struct {
	webhookSecret string

	mu      sync.Mutex
	seq     int
	intents map[string]*ports.PaymentIntent
}

// NewMock creates the mock processor.
func NewMock(webhookSecret string) *Mock {
	return &Mock{
		webhookSecret: webhookSecret,
		intents:       make(map[string]*ports.PaymentIntent),
	}
}

// Name identifies the gateway.
func (m *Mock) Name() string { return "mock" }

// CreatePaymentIntent registers an intent locally.
func (m *Mock) CreatePaymentIntent(_ context.Context, amountMinor int64, currency string, _ map[string]string) (*ports.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := fmt.Sprintf("pi_mock_%d", m.seq)
	intent := &ports.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + m.webhookSecret[:minInt(8, len(m.webhookSecret))],
		Status:       "requires_payment_method",
		AmountMinor:  amountMinor,
		Currency:     currency,
	}
	m.intents[id] = intent

	out := *intent
	return &out, nil
}

// GetPaymentIntent returns a previously created intent.
func (m *Mock) GetPaymentIntent(_ context.Context, id string) (*ports.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	out := *intent
	return &out, nil
}

// CapturePayment marks the intent succeeded.
func (m *Mock) CapturePayment(_ context.Context, id string) (*ports.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	intent.Status = "succeeded"
	out := *intent
	return &out, nil
}

// RefundPayment returns a synthetic refund.
func (m *Mock) RefundPayment(_ context.Context, id string, amountMinor *int64) (*ports.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return nil, errors.ErrEntityNotFound
	}
	amount := intent.AmountMinor
	if amountMinor != nil {
		amount = *amountMinor
	}
	m.seq++
	return &ports.Refund{
		ID:          fmt.Sprintf("re_mock_%d", m.seq),
		Status:      "succeeded",
		AmountMinor: amount,
	}, nil
}

// CreatePayout returns a synthetic payout handle.
func (m *Mock) CreatePayout(_ context.Context, _ string, amountMinor int64, currency string) (*ports.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	return &ports.Payout{
		ID:          fmt.Sprintf("po_mock_%d", m.seq),
		Status:      "paid",
		AmountMinor: amountMinor,
		Currency:    currency,
	}, nil
}

// mockEventBody is the JSON shape the mock expects from signed test events.
type mockEventBody struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook checks the signature and parses the event body.
func (m *Mock) VerifyWebhook(rawBody []byte, signatureHeader string) (*ports.WebhookEvent, error) {
	if err := VerifySignature(m.webhookSecret, rawBody, signatureHeader, time.Now()); err != nil {
		return nil, err
	}

	var body mockEventBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed event body", errors.ErrInvalidSignature)
	}
	if body.ID == "" || body.Type == "" {
		return nil, fmt.Errorf("%w: event id and type are required", errors.ErrInvalidSignature)
	}

	return &ports.WebhookEvent{
		ID:   body.ID,
		Type: body.Type,
		Data: ports.WebhookEventData{
			ObjectID:    body.Data.Object.ID,
			AmountMinor: body.Data.Object.Amount,
			Currency:    strings.ToUpper(body.Data.Object.Currency),
			Metadata:    body.Data.Object.Metadata,
		},
		Raw: rawBody,
	}, nil
}

// SignEvent produces a valid signature header for a test event body.
func (m *Mock) SignEvent(body []byte) string {
	return SignPayload(m.webhookSecret, body, time.Now())
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
