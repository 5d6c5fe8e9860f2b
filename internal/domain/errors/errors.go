// Package errors defines domain-specific error types.
// Typed errors (instead of strings) let callers branch on the cases they
// care about, and let the HTTP layer map each case to the right status code.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core money-movement invariants.
var (
	ErrEntityNotFound      = errors.New("entity not found")
	ErrEntityAlreadyExists = errors.New("entity already exists")

	// Ledger and transaction errors
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrUnbalancedEntries       = errors.New("ledger entries do not balance")
	ErrCurrencyMismatch        = errors.New("currency does not match wallet currency")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrWalletNotActive         = errors.New("wallet is not active")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

	// Auth errors
	ErrInvalidAPIKey      = errors.New("invalid or inactive API key")
	ErrPartnerNotApproved = errors.New("partner is not approved")
	ErrPermissionDenied   = errors.New("API key lacks required permission")
	ErrWrongPartnerScope  = errors.New("resource belongs to another partner")

	// Funding errors
	ErrSessionExpired  = errors.New("funding session has expired")
	ErrSessionTerminal = errors.New("funding session is already terminal")

	// Webhook errors
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrDuplicateEvent   = errors.New("webhook event already processed")
)

// DomainError wraps an error with a machine-readable code and message.
type DomainError struct {
	Code    string // e.g. "INSUFFICIENT_BALANCE"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap supports errors.Is and errors.As chains.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// ValidationError reports a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
}

// BusinessRuleViolation reports a semantic rule failure: the request parsed
// fine but the operation is not allowed in the current state.
type BusinessRuleViolation struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *BusinessRuleViolation) Error() string {
	return fmt.Sprintf("business rule violation [%s]: %s", e.Rule, e.Message)
}

// NewBusinessRuleViolation creates a new business rule violation.
func NewBusinessRuleViolation(rule, message string, ctx map[string]interface{}) *BusinessRuleViolation {
	return &BusinessRuleViolation{Rule: rule, Message: message, Context: ctx}
}

// IsNotFound checks for the "entity not found" case.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) || errors.Is(err, ErrWalletNotFound)
}

// IsValidation checks for a field validation failure.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// IsBusinessRuleViolation checks for a semantic rule failure.
func IsBusinessRuleViolation(err error) bool {
	var brv *BusinessRuleViolation
	return errors.As(err, &brv)
}

// IsLedgerRejection reports whether an error is one of the ledger's
// business rejections: the post must fail but the request was understood.
// The orchestrator persists a failed transaction for these instead of
// surfacing a 5xx.
func IsLedgerRejection(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrUnbalancedEntries) ||
		errors.Is(err, ErrCurrencyMismatch)
}
