// Package common holds the error vocabulary and response helpers shared by
// handlers and middleware. It lives in its own package to avoid import
// cycles between the two.
package common

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/payflow/payflow/internal/domain/errors"
	"github.com/payflow/payflow/internal/domain/valueobjects"
)

// Error kinds surfaced to callers. Kinds name the category of failure, never
// the internal type that produced it.
const (
	KindAuthentication = "authentication" // 401
	KindForbidden      = "forbidden"      // 403
	KindNotFound       = "not_found"      // 404
	KindConflict       = "conflict"       // 409
	KindGone           = "gone"           // 410
	KindValidation     = "validation"     // 400
	KindUnprocessable  = "unprocessable"  // 422
	KindRateLimited    = "rate_limited"   // 429
	KindInternal       = "internal"       // 500
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondError writes one error response and aborts the chain.
func RespondError(c *gin.Context, status int, kind string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: kind, Details: details})
}

// FieldDetail reports one invalid request field.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationFailed writes a 400 with per-field details.
func ValidationFailed(c *gin.Context, fields []FieldDetail) {
	RespondError(c, http.StatusBadRequest, KindValidation, fields)
}

// HandleDomainError maps a use-case error onto the HTTP taxonomy. The order
// matters: scope violations must stay 403 even when the underlying entity
// also does not exist, and ledger rejections are 422 business outcomes, not
// server faults.
func HandleDomainError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, domainerrors.ErrWrongPartnerScope):
		RespondError(c, http.StatusForbidden, KindForbidden, nil)

	case stderrors.Is(err, domainerrors.ErrInvalidAPIKey),
		stderrors.Is(err, domainerrors.ErrPartnerNotApproved):
		RespondError(c, http.StatusUnauthorized, KindAuthentication, nil)

	case stderrors.Is(err, domainerrors.ErrPermissionDenied):
		RespondError(c, http.StatusForbidden, KindForbidden, nil)

	case stderrors.Is(err, domainerrors.ErrSessionExpired):
		RespondError(c, http.StatusGone, KindGone, nil)

	case stderrors.Is(err, domainerrors.ErrEntityAlreadyExists):
		RespondError(c, http.StatusConflict, KindConflict, nil)

	case domainerrors.IsNotFound(err):
		RespondError(c, http.StatusNotFound, KindNotFound, nil)

	case stderrors.Is(err, domainerrors.ErrInvalidSignature):
		RespondError(c, http.StatusBadRequest, KindValidation, "signature verification failed")

	case domainerrors.IsLedgerRejection(err):
		RespondError(c, http.StatusUnprocessableEntity, KindUnprocessable, err.Error())

	case domainerrors.IsValidation(err),
		stderrors.Is(err, valueobjects.ErrInvalidAmount),
		stderrors.Is(err, valueobjects.ErrNegativeAmount):
		RespondError(c, http.StatusBadRequest, KindValidation, err.Error())

	case domainerrors.IsBusinessRuleViolation(err):
		RespondError(c, http.StatusUnprocessableEntity, KindUnprocessable, err.Error())

	default:
		var de *domainerrors.DomainError
		if stderrors.As(err, &de) {
			RespondError(c, http.StatusUnprocessableEntity, KindUnprocessable, de.Message)
			return
		}
		// Never leak database, stack or secret material.
		RespondError(c, http.StatusInternalServerError, KindInternal, nil)
	}
}
