package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/adapters/http/middleware"
	"github.com/payflow/payflow/internal/application/usecases/transactionops"
	"github.com/payflow/payflow/internal/application/usecases/wallet"
	"github.com/payflow/payflow/internal/domain/entities"
)

// TransactionHandler serves transfers and transaction lookups.
type TransactionHandler struct {
	wallets      *wallet.Service
	orchestrator *transactionops.PostTransactionUseCase
}

// NewTransactionHandler creates the transaction handler.
func NewTransactionHandler(wallets *wallet.Service, orchestrator *transactionops.PostTransactionUseCase) *TransactionHandler {
	return &TransactionHandler{wallets: wallets, orchestrator: orchestrator}
}

type transferRequest struct {
	FromWalletID   string `json:"fromWalletId" binding:"required,uuid"`
	ToWalletID     string `json:"toWalletId" binding:"required,uuid"`
	Amount         string `json:"amount" binding:"required,money_amount"`
	Currency       string `json:"currency" binding:"required,currency_code"`
	IdempotencyKey string `json:"idempotencyKey" binding:"required,idempotency_key"`
	Description    string `json:"description" binding:"omitempty,max=500"`
}

// Transfer moves funds between two wallets of the caller's partner.
func (h *TransactionHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if !bindJSON(c, &req) {
		return
	}
	fromID, toID := mustUUID(req.FromWalletID), mustUUID(req.ToWalletID)
	if fromID == toID {
		common.ValidationFailed(c, []common.FieldDetail{{Field: "toWalletId", Message: "must differ from fromWalletId"}})
		return
	}
	amount, ok := parseMoney(c, req.Amount, req.Currency)
	if !ok {
		return
	}

	respondPosted(c, h.orchestrator, middleware.AuthPartnerID(c), transactionops.PostRequest{
		Type:           entities.TransactionTypeTransfer,
		FromWalletID:   &fromID,
		ToWalletID:     &toID,
		Amount:         amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// Get returns one transaction; ownership enforced.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	tx, err := h.wallets.GetTransaction(c.Request.Context(), middleware.AuthPartnerID(c), id)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(tx))
}
