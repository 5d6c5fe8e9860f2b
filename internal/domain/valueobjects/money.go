// Package valueobjects - Money pairs a fixed-point amount with a currency.
// All balances and transaction amounts in the system are two-decimal
// fixed-point values; floats never touch money.
package valueobjects

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Money errors surfaced to callers.
var (
	ErrInvalidAmount    = errors.New("invalid amount format")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrCurrencyMismatch = errors.New("cannot operate on different currencies")
)

// amountPattern is the wire format: at least one digit, a dot, exactly two
// fractional digits. Leading signs are rejected; negative money does not
// exist at the API boundary.
var amountPattern = regexp.MustCompile(`^\d+\.\d{2}$`)

// Money is an immutable amount in a single currency, held to exactly two
// fractional digits.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney parses a wire-format amount string ("100.00") into Money.
// The string must carry exactly two fractional digits.
func NewMoney(amountStr string, currency Currency) (Money, error) {
	if !amountPattern.MatchString(amountStr) {
		return Money{}, fmt.Errorf("%w: %q (expected two fractional digits)", ErrInvalidAmount, amountStr)
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amountStr)
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyFromDecimal builds Money from a decimal, quantizing to two places.
// Rejects negative amounts; inbound amounts are never negative.
func NewMoneyFromDecimal(amount decimal.Decimal, currency Currency) (Money, error) {
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: amount.Round(2), currency: currency}, nil
}

// NewMoneyFromStored parses an amount read back from a database NUMERIC
// column. Negative values are allowed here: clearing wallet balances run
// negative by construction.
func NewMoneyFromStored(amountStr string, currency Currency) (Money, error) {
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amountStr)
	}
	return Money{amount: amount.Round(2), currency: currency}, nil
}

// NewMoneyFromMinorUnits converts minor units (cents) into Money. Used at
// the processor boundary and when hydrating stored amounts. Negative values
// are allowed: clearing wallet balances run negative by construction.
func NewMoneyFromMinorUnits(minor int64, currency Currency) (Money, error) {
	return Money{amount: decimal.New(minor, -2), currency: currency}, nil
}

// Zero returns a zero amount in the given currency.
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Currency returns the money's currency.
func (m Money) Currency() Currency {
	return m.currency
}

// Decimal returns the underlying decimal amount.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String returns the wire format with exactly two fractional digits.
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// MinorUnits returns the amount in processor minor units (cents).
func (m Money) MinorUnits() int64 {
	return m.amount.Shift(2).IntPart()
}

// Add returns the sum. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if !m.currency.Equals(other.currency) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns the difference. The result may be negative; callers that
// must not go below zero check IsNegative on the result.
func (m Money) Subtract(other Money) (Money, error) {
	if !m.currency.Equals(other.currency) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// GreaterThanOrEqual compares amounts. Currencies must match.
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	if !m.currency.Equals(other.currency) {
		return false, ErrCurrencyMismatch
	}
	return m.amount.GreaterThanOrEqual(other.amount), nil
}

// Equals reports whether amount and currency both match.
func (m Money) Equals(other Money) bool {
	return m.currency.Equals(other.currency) && m.amount.Equal(other.amount)
}
