package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/domain/errors"
)

var _ ports.Gateway = (*Stripe)(nil)

// Stripe is the live processor adapter. Requests are form-encoded POSTs
// authenticated with the secret key; amounts cross in minor units as the
// processor expects.
type Stripe struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

// StripeOptions configures the live adapter.
type StripeOptions struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string // defaults to https://api.stripe.com
	Timeout       time.Duration
}

// NewStripe creates the live processor adapter.
func NewStripe(opts StripeOptions) *Stripe {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Stripe{
		apiKey:        opts.APIKey,
		webhookSecret: opts.WebhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
	}
}

// Name identifies the gateway.
func (s *Stripe) Name() string { return "stripe" }

// intentResponse is the subset of the processor's payment intent object the
// adapter consumes.
type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// CreatePaymentIntent registers a pending payment.
func (s *Stripe) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*ports.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var resp intentResponse
	if err := s.post(ctx, "/v1/payment_intents", form, &resp); err != nil {
		return nil, err
	}
	return intentFromResponse(resp), nil
}

// GetPaymentIntent fetches the intent, client secret included.
func (s *Stripe) GetPaymentIntent(ctx context.Context, id string) (*ports.PaymentIntent, error) {
	var resp intentResponse
	if err := s.get(ctx, "/v1/payment_intents/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return intentFromResponse(resp), nil
}

// CapturePayment captures an authorized payment.
func (s *Stripe) CapturePayment(ctx context.Context, id string) (*ports.PaymentIntent, error) {
	var resp intentResponse
	if err := s.post(ctx, "/v1/payment_intents/"+url.PathEscape(id)+"/capture", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return intentFromResponse(resp), nil
}

// RefundPayment refunds a payment, fully when amountMinor is nil.
func (s *Stripe) RefundPayment(ctx context.Context, id string, amountMinor *int64) (*ports.Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", id)
	if amountMinor != nil {
		form.Set("amount", strconv.FormatInt(*amountMinor, 10))
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := s.post(ctx, "/v1/refunds", form, &resp); err != nil {
		return nil, err
	}
	return &ports.Refund{ID: resp.ID, Status: resp.Status, AmountMinor: resp.Amount}, nil
}

// CreatePayout sends funds to an external destination.
func (s *Stripe) CreatePayout(ctx context.Context, destination string, amountMinor int64, currency string) (*ports.Payout, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("destination", destination)

	var resp struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := s.post(ctx, "/v1/payouts", form, &resp); err != nil {
		return nil, err
	}
	return &ports.Payout{
		ID:          resp.ID,
		Status:      resp.Status,
		AmountMinor: resp.Amount,
		Currency:    strings.ToUpper(resp.Currency),
	}, nil
}

// stripeEventBody is the subset of the processor's event object the webhook
// path consumes.
type stripeEventBody struct {
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

// VerifyWebhook checks the signature header and parses the event. Fails
// closed on any verification or parse error.
func (s *Stripe) VerifyWebhook(rawBody []byte, signatureHeader string) (*ports.WebhookEvent, error) {
	if err := VerifySignature(s.webhookSecret, rawBody, signatureHeader, time.Now()); err != nil {
		return nil, err
	}

	var body stripeEventBody
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

func intentFromResponse(resp intentResponse) *ports.PaymentIntent {
	return &ports.PaymentIntent{
		ID:           resp.ID,
		ClientSecret: resp.ClientSecret,
		Status:       resp.Status,
		AmountMinor:  resp.Amount,
		Currency:     strings.ToUpper(resp.Currency),
	}
}

func (s *Stripe) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build processor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, out)
}

func (s *Stripe) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build processor request: %w", err)
	}
	return s.do(req, out)
}

func (s *Stripe) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("processor request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read processor response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return fmt.Errorf("processor returned %d (%s): %s",
			resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode processor response: %w", err)
	}
	return nil
}
