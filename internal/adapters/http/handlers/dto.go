package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/domain/entities"
)

// Wire DTOs. Entities never serialize themselves; the mapping lives here so
// the JSON surface can evolve without touching the domain.

type walletResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	ExternalUserID   *string   `json:"externalUserId,omitempty"`
	ExternalWalletID *string   `json:"externalWalletId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toWalletResponse(w *entities.Wallet) walletResponse {
	return walletResponse{
		ID:               w.ID(),
		Name:             w.Name(),
		Currency:         w.Currency().Code(),
		Status:           string(w.Status()),
		ExternalUserID:   w.ExternalUserID(),
		ExternalWalletID: w.ExternalWalletID(),
		CreatedAt:        w.CreatedAt(),
	}
}

func toWalletListResponse(ws []*entities.Wallet) []walletResponse {
	out := make([]walletResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWalletResponse(w))
	}
	return out
}

type transactionResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Type                 string     `json:"type"`
	Status               string     `json:"status"`
	Amount               string     `json:"amount"`
	Currency             string     `json:"currency"`
	FromWalletID         *uuid.UUID `json:"fromWalletId,omitempty"`
	ToWalletID           *uuid.UUID `json:"toWalletId,omitempty"`
	IdempotencyKey       string     `json:"idempotencyKey,omitempty"`
	Description          string     `json:"description,omitempty"`
	FailureReason        string     `json:"failureReason,omitempty"`
	Gateway              string     `json:"gateway,omitempty"`
	GatewayTransactionID string     `json:"gatewayTransactionId,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func toTransactionResponse(tx *entities.Transaction) transactionResponse {
	return transactionResponse{
		ID:                   tx.ID(),
		Type:                 string(tx.Type()),
		Status:               string(tx.Status()),
		Amount:               tx.Amount().String(),
		Currency:             tx.Currency().Code(),
		FromWalletID:         tx.FromWalletID(),
		ToWalletID:           tx.ToWalletID(),
		IdempotencyKey:       tx.IdempotencyKey(),
		Description:          tx.Description(),
		FailureReason:        tx.FailureReason(),
		Gateway:              tx.Gateway(),
		GatewayTransactionID: tx.GatewayTransactionID(),
		CreatedAt:            tx.CreatedAt(),
	}
}

func toTransactionListResponse(txs []*entities.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}

type fundingSessionResponse struct {
	ID        uuid.UUID         `json:"id"`
	WalletID  uuid.UUID         `json:"walletId"`
	Status    string            `json:"status"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	ExpiresAt time.Time         `json:"expiresAt"`
	URL       string            `json:"url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toFundingSessionResponse(s *entities.FundingSession, publicURL string) fundingSessionResponse {
	return fundingSessionResponse{
		ID:        s.ID(),
		WalletID:  s.WalletID(),
		Status:    string(s.Status()),
		Amount:    s.Amount().String(),
		Currency:  s.Amount().Currency().Code(),
		ExpiresAt: s.ExpiresAt(),
		URL:       publicURL,
		Metadata:  s.Metadata(),
		CreatedAt: s.CreatedAt(),
	}
}

// publicFundingResponse is served to the payment page without auth. It adds
// the processor's client secret and drops partner-internal fields.
type publicFundingResponse struct {
	ID           uuid.UUID         `json:"id"`
	Status       string            `json:"status"`
	Amount       string            `json:"amount"`
	Currency     string            `json:"currency"`
	WalletID     uuid.UUID         `json:"walletId"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ClientSecret string            `json:"clientSecret"`
}

type partnerResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	WebhookURL string    `json:"webhookUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toPartnerResponse(p *entities.Partner) partnerResponse {
	return partnerResponse{
		ID:         p.ID(),
		Name:       p.Name(),
		Status:     string(p.Status()),
		WebhookURL: p.WebhookURL(),
		CreatedAt:  p.CreatedAt(),
	}
}

type apiKeyResponse struct {
	ID          uuid.UUID  `json:"id"`
	Environment string     `json:"environment"`
	Permissions []string   `json:"permissions"`
	Active      bool       `json:"active"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	// Secret is present exactly once, in the issuance response.
	Secret string `json:"secret,omitempty"`
}

func toAPIKeyResponse(k *entities.APIKey, secret string) apiKeyResponse {
	perms := make([]string, 0, len(k.Permissions()))
	for _, p := range k.Permissions() {
		perms = append(perms, string(p))
	}
	return apiKeyResponse{
		ID:          k.ID(),
		Environment: string(k.Environment()),
		Permissions: perms,
		Active:      k.Active(),
		ExpiresAt:   k.ExpiresAt(),
		LastUsedAt:  k.LastUsedAt(),
		CreatedAt:   k.CreatedAt(),
		Secret:      secret,
	}
}
