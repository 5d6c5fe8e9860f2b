package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/adapters/http/middleware"
	"github.com/payflow/payflow/internal/application/usecases/payout"
	domainerrors "github.com/payflow/payflow/internal/domain/errors"
)

// PayoutHandler serves external payouts.
type PayoutHandler struct {
	payouts *payout.Service
}

// NewPayoutHandler creates the payout handler.
func NewPayoutHandler(payouts *payout.Service) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

type payoutRequest struct {
	WalletID       string `json:"walletId" binding:"required,uuid"`
	Destination    string `json:"destination" binding:"required,max=255"`
	Amount         string `json:"amount" binding:"required,money_amount"`
	Currency       string `json:"currency" binding:"required,currency_code"`
	Gateway        string `json:"gateway" binding:"omitempty,max=50"`
	Description    string `json:"description" binding:"omitempty,max=500"`
	IdempotencyKey string `json:"idempotencyKey" binding:"required,idempotency_key"`
}

// Create debits the wallet and hands the funds to the processor. An
// insufficient balance is a 422 with the failed transaction; a processor
// failure after the debit surfaces as 502 with the debit intact.
func (h *PayoutHandler) Create(c *gin.Context) {
	var req payoutRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseMoney(c, req.Amount, req.Currency)
	if !ok {
		return
	}

	tx, err := h.payouts.Execute(c.Request.Context(), middleware.AuthPartnerID(c), payout.Input{
		FromWalletID:   mustUUID(req.WalletID),
		Amount:         amount,
		Destination:    req.Destination,
		Gateway:        req.Gateway,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if tx != nil && domainerrors.IsLedgerRejection(err) {
			common.RespondError(c, http.StatusUnprocessableEntity, common.KindUnprocessable, toTransactionResponse(tx))
			return
		}
		if tx != nil {
			// Debit committed, processor call failed. The caller retries
			// with the same idempotency key once the processor recovers.
			common.RespondError(c, http.StatusBadGateway, common.KindInternal, gin.H{
				"transactionId": tx.ID(),
				"message":       "payout accepted locally but the processor call failed; retry with the same idempotency key",
			})
			return
		}
		common.HandleDomainError(c, err)
		return
	}

	middleware.RecordTransaction(string(tx.Type()), string(tx.Status()), tx.Currency().Code())
	c.JSON(http.StatusCreated, toTransactionResponse(tx))
}
