package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow/payflow/internal/domain/errors"
)

const testSecret = "whsec_signature_test"

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()

	header := SignPayload(testSecret, body, now)
	assert.NoError(t, VerifySignature(testSecret, body, header, now))

	// Verification within the tolerance window succeeds on both sides.
	assert.NoError(t, VerifySignature(testSecret, body, header, now.Add(4*time.Minute)))
	assert.NoError(t, VerifySignature(testSecret, body, header, now.Add(-4*time.Minute)))
}

func TestVerifySignature_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"amount":1000}`)
	now := time.Now()
	header := SignPayload(testSecret, body, now)

	err := VerifySignature(testSecret, []byte(`{"amount":9000}`), header, now)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestVerifySignature_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()
	header := SignPayload(testSecret, body, now)

	err := VerifySignature("whsec_other", body, header, now)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestVerifySignature_RejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	signed := time.Now()
	header := SignPayload(testSecret, body, signed)

	err := VerifySignature(testSecret, body, header, signed.Add(6*time.Minute))
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	// Timestamps from the future are just as suspect.
	err = VerifySignature(testSecret, body, header, signed.Add(-6*time.Minute))
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestVerifySignature_RejectsMalformedHeaders(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()

	for _, header := range []string{
		"",
		"garbage",
		"t=123",
		"v1=abcdef",
		"t=notanumber,v1=abcdef",
	} {
		err := VerifySignature(testSecret, body, header, now)
		assert.ErrorIs(t, err, errors.ErrInvalidSignature, "header %q", header)
	}
}

func TestMock_WebhookRoundTrip(t *testing.T) {
	mock := NewMock(testSecret)
	body := []byte(`{"id":"evt_42","type":"charge.succeeded","data":{"object":{"id":"ch_1","amount":2500,"currency":"eur","metadata":{"k":"v"}}}}`)

	event, err := mock.VerifyWebhook(body, mock.SignEvent(body))
	require.NoError(t, err)
	assert.Equal(t, "evt_42", event.ID)
	assert.Equal(t, "charge.succeeded", event.Type)
	assert.Equal(t, "ch_1", event.Data.ObjectID)
	assert.Equal(t, int64(2500), event.Data.AmountMinor)
	assert.Equal(t, "EUR", event.Data.Currency, "currency is normalized to uppercase")
	assert.Equal(t, "v", event.Data.Metadata["k"])
}

func TestMock_WebhookRejectsMissingIdentity(t *testing.T) {
	mock := NewMock(testSecret)
	body := []byte(`{"data":{"object":{"id":"ch_1"}}}`)

	_, err := mock.VerifyWebhook(body, mock.SignEvent(body))
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry("mock")
	mock := NewMock(testSecret)
	registry.Register(mock)

	gw, err := registry.Get("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", gw.Name())

	// Empty name selects the default.
	gw, err = registry.Get("")
	require.NoError(t, err)
	assert.Equal(t, "mock", gw.Name())

	_, err = registry.Get("stripe")
	assert.Error(t, err)
}
