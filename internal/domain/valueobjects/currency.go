// Package valueobjects contains the immutable value types shared by the
// domain entities. Values validate themselves at construction so the rest
// of the system never handles an invalid currency or amount.
package valueobjects

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 alphabetic currency code, always uppercase.
//
// Value Object Pattern:
// - Immutable: the code is fixed at construction
// - Self-validating: NewCurrency rejects anything but three letters
type Currency struct {
	code string
}

// NewCurrency creates a Currency from a three-letter code.
// The code is normalized to uppercase.
func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return Currency{}, fmt.Errorf("currency code must be three letters, got %q", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return Currency{}, fmt.Errorf("currency code must be letters only, got %q", code)
		}
	}
	return Currency{code: code}, nil
}

// MustCurrency is a constructor for tests and constants; panics on bad input.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Code returns the ISO 4217 code.
func (c Currency) Code() string {
	return c.code
}

// Equals compares two currencies by code.
func (c Currency) Equals(other Currency) bool {
	return c.code == other.code
}

// IsZero reports whether the currency is the zero value.
func (c Currency) IsZero() bool {
	return c.code == ""
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return c.code
}
