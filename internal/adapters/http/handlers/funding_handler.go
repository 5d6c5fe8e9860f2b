package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/adapters/http/middleware"
	"github.com/payflow/payflow/internal/application/usecases/funding"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// publicFundingPath is where the hosted payment page fetches session data.
const publicFundingPath = "/api/public/funding/sessions/"

// FundingHandler serves funding session creation and lookups, including the
// unauthenticated payment-page endpoint.
type FundingHandler struct {
	funding *funding.Manager
}

// NewFundingHandler creates the funding handler.
func NewFundingHandler(manager *funding.Manager) *FundingHandler {
	return &FundingHandler{funding: manager}
}

type createFundingRequest struct {
	// Amount is a JSON number here, unlike the string everywhere else; the
	// hosted page posts what its amount widget holds.
	Amount     json.Number       `json:"amount" binding:"required"`
	Currency   string            `json:"currency" binding:"required,currency_code"`
	Gateway    string            `json:"gateway" binding:"omitempty,max=50"`
	SuccessURL string            `json:"successUrl" binding:"omitempty,url,max=2000"`
	CancelURL  string            `json:"cancelUrl" binding:"omitempty,url,max=2000"`
	Metadata   map[string]string `json:"metadata" binding:"omitempty,max=20"`
}

// Create opens a funding session for the wallet and returns the public URL
// the partner redirects its user to.
func (h *FundingHandler) Create(c *gin.Context) {
	walletID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req createFundingRequest
	if !bindJSON(c, &req) {
		return
	}

	currency, err := valueobjects.NewCurrency(req.Currency)
	if err != nil {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "currency", Message: "must be three uppercase letters"}})
		return
	}
	dec, err := decimal.NewFromString(req.Amount.String())
	if err != nil || !dec.IsPositive() || dec.Exponent() < -2 {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "amount", Message: "must be a positive number with at most two decimals"}})
		return
	}
	amount, err := valueobjects.NewMoneyFromDecimal(dec, currency)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	session, err := h.funding.Create(c.Request.Context(), middleware.AuthPartnerID(c), funding.CreateInput{
		WalletID:   walletID,
		Amount:     amount,
		Gateway:    req.Gateway,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata:   req.Metadata,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFundingSessionResponse(session, publicFundingPath+session.ID().String()))
}

// Get is the partner's view of a session.
func (h *FundingHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	session, err := h.funding.Get(c.Request.Context(), middleware.AuthPartnerID(c), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFundingSessionResponse(session, publicFundingPath+session.ID().String()))
}

// GetPublic serves the payment page. No auth; the session id is the
// capability. Expired sessions are 410.
func (h *FundingHandler) GetPublic(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	session, clientSecret, err := h.funding.GetPublic(c.Request.Context(), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicFundingResponse{
		ID:           session.ID(),
		Status:       string(session.Status()),
		Amount:       session.Amount().String(),
		Currency:     session.Amount().Currency().Code(),
		WalletID:     session.WalletID(),
		ExpiresAt:    session.ExpiresAt(),
		Metadata:     session.Metadata(),
		ClientSecret: clientSecret,
	})
}
