package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/adapters/http/middleware"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/application/usecases/transactionops"
	"github.com/payflow/payflow/internal/application/usecases/wallet"
	"github.com/payflow/payflow/internal/domain/entities"
	domainerrors "github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// WalletHandler serves the partner wallet surface: creation, lookups,
// balance, money movement and history.
type WalletHandler struct {
	wallets      *wallet.Service
	orchestrator *transactionops.PostTransactionUseCase
}

// NewWalletHandler creates the wallet handler.
func NewWalletHandler(wallets *wallet.Service, orchestrator *transactionops.PostTransactionUseCase) *WalletHandler {
	return &WalletHandler{wallets: wallets, orchestrator: orchestrator}
}

type createWalletRequest struct {
	Name             string  `json:"name" binding:"required,max=100"`
	Currency         string  `json:"currency" binding:"required,currency_code"`
	ExternalUserID   *string `json:"externalUserId" binding:"omitempty,max=255"`
	ExternalWalletID *string `json:"externalWalletId" binding:"omitempty,max=255"`
}

// Create makes a wallet in the caller's partner scope. A duplicate
// externalWalletId within the partner is a 409.
func (h *WalletHandler) Create(c *gin.Context) {
	var req createWalletRequest
	if !bindJSON(c, &req) {
		return
	}
	currency, err := valueobjects.NewCurrency(req.Currency)
	if err != nil {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "currency", Message: "must be three uppercase letters"}})
		return
	}

	w, err := h.wallets.Create(c.Request.Context(), middleware.AuthPartnerID(c), wallet.CreateInput{
		Name:             req.Name,
		Currency:         currency,
		ExternalUserID:   req.ExternalUserID,
		ExternalWalletID: req.ExternalWalletID,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWalletResponse(w))
}

// List returns the caller's wallets, paginated.
func (h *WalletHandler) List(c *gin.Context) {
	limit, offset, ok := parseLimitOffset(c)
	if !ok {
		return
	}
	ws, err := h.wallets.List(c.Request.Context(), middleware.AuthPartnerID(c), offset, limit)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": toWalletListResponse(ws), "limit": limit, "offset": offset})
}

// Get returns one wallet; ownership enforced, foreign wallets are 403.
func (h *WalletHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	w, err := h.wallets.Get(c.Request.Context(), middleware.AuthPartnerID(c), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWalletResponse(w))
}

// GetByExternalID resolves a partner-supplied wallet id.
func (h *WalletHandler) GetByExternalID(c *gin.Context) {
	externalID := c.Param("externalId")
	if externalID == "" {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "externalId", Message: "this field is required"}})
		return
	}
	w, err := h.wallets.GetByExternalID(c.Request.Context(), middleware.AuthPartnerID(c), externalID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWalletResponse(w))
}

// Balance returns the wallet's current ledger balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	balance, err := h.wallets.Balance(c.Request.Context(), middleware.AuthPartnerID(c), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":  balance.String(),
		"currency": balance.Currency().Code(),
	})
}

type moveMoneyRequest struct {
	Amount         string `json:"amount" binding:"required,money_amount"`
	Currency       string `json:"currency" binding:"required,currency_code"`
	IdempotencyKey string `json:"idempotencyKey" binding:"required,idempotency_key"`
	Description    string `json:"description" binding:"omitempty,max=500"`
}

// Credit adds funds to the wallet from the partner's clearing wallet.
func (h *WalletHandler) Credit(c *gin.Context) {
	h.post(c, entities.TransactionTypeCredit)
}

// Debit removes funds; an insufficient balance yields a 422 with the failed
// transaction persisted.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.post(c, entities.TransactionTypeDebit)
}

func (h *WalletHandler) post(c *gin.Context, txType entities.TransactionType) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req moveMoneyRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseMoney(c, req.Amount, req.Currency)
	if !ok {
		return
	}

	post := transactionops.PostRequest{
		Type:           txType,
		Amount:         amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	}
	if txType == entities.TransactionTypeCredit {
		post.ToWalletID = &id
	} else {
		post.FromWalletID = &id
	}

	respondPosted(c, h.orchestrator, middleware.AuthPartnerID(c), post)
}

// Transactions lists the wallet's history, newest first, optionally filtered
// by type and status.
func (h *WalletHandler) Transactions(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	limit, offset, ok := parseLimitOffset(c)
	if !ok {
		return
	}

	var filter ports.TransactionFilter
	if raw := c.Query("type"); raw != "" {
		t := entities.TransactionType(raw)
		if !t.IsValid() {
			common.ValidationFailed(c, []common.FieldDetail{{Field: "type", Message: "unknown transaction type"}})
			return
		}
		filter.Type = &t
	}
	if raw := c.Query("status"); raw != "" {
		s := entities.TransactionStatus(raw)
		if !s.IsValid() {
			common.ValidationFailed(c, []common.FieldDetail{{Field: "status", Message: "unknown transaction status"}})
			return
		}
		filter.Status = &s
	}

	txs, err := h.wallets.Transactions(c.Request.Context(), middleware.AuthPartnerID(c), id, filter, offset, limit)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": toTransactionListResponse(txs), "limit": limit, "offset": offset})
}

// parseMoney converts the wire amount/currency pair, writing the 400 itself.
func parseMoney(c *gin.Context, amountStr, currencyCode string) (valueobjects.Money, bool) {
	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "currency", Message: "must be three uppercase letters"}})
		return valueobjects.Money{}, false
	}
	amount, err := valueobjects.NewMoney(amountStr, currency)
	if err != nil {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "amount", Message: "must be a decimal string with two fractional digits"}})
		return valueobjects.Money{}, false
	}
	if !amount.IsPositive() {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "amount", Message: "must be positive"}})
		return valueobjects.Money{}, false
	}
	return amount, true
}

// respondPosted runs a post through the orchestrator and writes the shared
// response shape. A ledger rejection becomes a 422 carrying the persisted
// failed transaction; a replayed idempotency key returns the prior record
// with the same body a fresh post would get.
func respondPosted(c *gin.Context, orchestrator *transactionops.PostTransactionUseCase, partnerID uuid.UUID, post transactionops.PostRequest) {
	tx, err := orchestrator.Execute(c.Request.Context(), partnerID, post)
	if err != nil {
		if tx != nil && domainerrors.IsLedgerRejection(err) {
			middleware.RecordTransaction(string(tx.Type()), string(tx.Status()), tx.Currency().Code())
			common.RespondError(c, http.StatusUnprocessableEntity, common.KindUnprocessable, toTransactionResponse(tx))
			return
		}
		common.HandleDomainError(c, err)
		return
	}
	middleware.RecordTransaction(string(tx.Type()), string(tx.Status()), tx.Currency().Code())
	c.JSON(http.StatusCreated, toTransactionResponse(tx))
}
