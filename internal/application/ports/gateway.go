// Package ports - Gateway is the uniform interface over external card
// processors. Amounts cross this boundary in the processor's minor units
// (cents); the adapters own the conversion.
package ports

import (
	"context"
	"encoding/json"
)

// PaymentIntent is the processor-side handle for a pending payment.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
}

// Payout is the processor-side handle for an outbound transfer.
type Payout struct {
	ID          string
	Status      string
	AmountMinor int64
	Currency    string
}

// Refund is the processor-side handle for a refund.
type Refund struct {
	ID          string
	Status      string
	AmountMinor int64
}

// WebhookEvent is a signature-verified processor event.
type WebhookEvent struct {
	ID   string
	Type string
	Data WebhookEventData
	Raw  json.RawMessage
}

// WebhookEventData is the payload common to payment events.
type WebhookEventData struct {
	ObjectID    string            // payment intent / charge id
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

// Gateway adapts one external processor. Implementations: a live
// Stripe-shaped HTTPS client and a deterministic mock for sandbox and tests.
type Gateway interface {
	// Name identifies the gateway ("stripe", "mock").
	Name() string

	// CreatePaymentIntent registers a pending payment with the processor.
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*PaymentIntent, error)

	// GetPaymentIntent fetches the intent, including its client secret.
	// The secret is served on demand and never persisted locally.
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)

	// CapturePayment captures a previously authorized payment.
	CapturePayment(ctx context.Context, id string) (*PaymentIntent, error)

	// RefundPayment refunds a payment, fully when amountMinor is nil.
	RefundPayment(ctx context.Context, id string, amountMinor *int64) (*Refund, error)

	// CreatePayout sends funds to an external destination.
	CreatePayout(ctx context.Context, destination string, amountMinor int64, currency string) (*Payout, error)

	// VerifyWebhook checks the signature header against the raw body and
	// returns the parsed event. It fails closed: bad signature, stale
	// timestamp, or malformed body all return ErrInvalidSignature.
	VerifyWebhook(rawBody []byte, signatureHeader string) (*WebhookEvent, error)
}

// GatewayRegistry resolves a gateway by name, falling back to a default.
type GatewayRegistry interface {
	// Get returns the named gateway; empty name selects the default.
	Get(name string) (Gateway, error)
}
