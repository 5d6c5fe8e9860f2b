// Package handlers adapts HTTP requests onto the application services:
// bind and validate, call the use case, map the result or error back onto
// the wire.
package handlers

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/payflow/payflow/internal/adapters/http/common"
)

var setupOnce sync.Once

// SetupValidator registers the custom binding validators. Safe to call more
// than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// Error details name fields by their json tag.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
		_ = v.RegisterValidation("money_amount", validateMoneyAmount)
		_ = v.RegisterValidation("idempotency_key", validateIdempotencyKey)
	})
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Amounts on the wire carry exactly two fractional digits.
var moneyPattern = regexp.MustCompile(`^\d+\.\d{2}$`)

func validateMoneyAmount(fl validator.FieldLevel) bool {
	return moneyPattern.MatchString(fl.Field().String())
}

// Idempotency keys: non-empty, at most 255 chars, alnum plus dash and
// underscore.
var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

func validateIdempotencyKey(fl validator.FieldLevel) bool {
	return idempotencyKeyPattern.MatchString(fl.Field().String())
}

// handleBindError turns validator errors into the per-field 400 shape.
func handleBindError(c *gin.Context, err error) {
	var fields []common.FieldDetail
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, common.FieldDetail{
				Field:   fe.Field(),
				Message: validationMessage(fe),
			})
		}
	}
	if len(fields) == 0 {
		common.RespondError(c, 400, common.KindValidation, "invalid request body")
		return
	}
	common.ValidationFailed(c, fields)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "must be a UUID"
	case "currency_code":
		return "must be three uppercase letters"
	case "money_amount":
		return "must be a decimal string with two fractional digits"
	case "idempotency_key":
		return "must be 1-255 characters of [A-Za-z0-9_-]"
	case "max":
		return "too long (maximum: " + fe.Param() + ")"
	case "min":
		return "too short (minimum: " + fe.Param() + ")"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "invalid value"
	}
}

// bindJSON binds and validates the request body. Returns false when the
// error response was already written.
func bindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		handleBindError(c, err)
		return false
	}
	return true
}

// pathUUID parses a UUID path parameter, writing the 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(c.Param(name))
	if err != nil {
		common.ValidationFailed(c, []common.FieldDetail{{Field: name, Message: "must be a UUID"}})
		return uuid.Nil, false
	}
	return parsed, true
}

// mustUUID parses a string the uuid binding tag already validated.
func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

// parseLimitOffset reads pagination query params with the API defaults:
// limit 20, capped at 100; offset 0.
func parseLimitOffset(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = 20, 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			common.ValidationFailed(c, []common.FieldDetail{{Field: "limit", Message: "must be an integer in [1,100]"}})
			return 0, 0, false
		}
		limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			common.ValidationFailed(c, []common.FieldDetail{{Field: "offset", Message: "must be a non-negative integer"}})
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
