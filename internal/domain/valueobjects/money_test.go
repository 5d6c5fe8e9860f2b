package valueobjects

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney_WireFormat(t *testing.T) {
	usd := MustCurrency("USD")

	m, err := NewMoney("100.00", usd)
	require.NoError(t, err)
	assert.Equal(t, "100.00", m.String())
	assert.Equal(t, int64(10000), m.MinorUnits())
	assert.Equal(t, "USD", m.Currency().Code())
}

func TestNewMoney_RejectsMalformedAmounts(t *testing.T) {
	usd := MustCurrency("USD")

	for _, amount := range []string{
		"100",      // no fractional part
		"100.0",    // one fractional digit
		"100.000",  // three fractional digits
		"-100.00",  // signed
		"+100.00",  // signed
		"1,000.00", // thousands separator
		".50",      // no integer part
		"abc",
		"",
	} {
		_, err := NewMoney(amount, usd)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q should be rejected", amount)
	}
}

func TestMoney_AddSubtract(t *testing.T) {
	usd := MustCurrency("USD")
	a, _ := NewMoney("100.00", usd)
	b, _ := NewMoney("33.33", usd)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "133.33", sum.String())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, "66.67", diff.String())

	// Subtract can go negative; the caller decides whether that is allowed.
	neg, err := b.Subtract(a)
	require.NoError(t, err)
	assert.True(t, neg.IsNegative())
	assert.Equal(t, "-66.67", neg.String())
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	usd, _ := NewMoney("10.00", MustCurrency("USD"))
	eur, _ := NewMoney("10.00", MustCurrency("EUR"))

	_, err := usd.Add(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = usd.Subtract(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = usd.GreaterThanOrEqual(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestNewMoneyFromMinorUnits(t *testing.T) {
	usd := MustCurrency("USD")

	m, err := NewMoneyFromMinorUnits(12345, usd)
	require.NoError(t, err)
	assert.Equal(t, "123.45", m.String())

	// Negative minor units are valid: clearing wallet balances run negative.
	neg, err := NewMoneyFromMinorUnits(-500, usd)
	require.NoError(t, err)
	assert.Equal(t, "-5.00", neg.String())
	assert.True(t, neg.IsNegative())
}

func TestNewMoneyFromStored(t *testing.T) {
	usd := MustCurrency("USD")

	m, err := NewMoneyFromStored("123.45", usd)
	require.NoError(t, err)
	assert.Equal(t, "123.45", m.String())

	// Stored balances may be negative: clearing wallets run negative.
	neg, err := NewMoneyFromStored("-5.00", usd)
	require.NoError(t, err)
	assert.Equal(t, "-5.00", neg.String())
	assert.True(t, neg.IsNegative())

	_, err = NewMoneyFromStored("not-a-number", usd)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewMoneyFromDecimal_RejectsNegative(t *testing.T) {
	usd := MustCurrency("USD")

	_, err := NewMoneyFromDecimal(decimal.NewFromInt(-1), usd)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	m, err := NewMoneyFromDecimal(decimal.RequireFromString("10.456"), usd)
	require.NoError(t, err)
	assert.Equal(t, "10.46", m.String())
}

func TestMoney_Comparisons(t *testing.T) {
	usd := MustCurrency("USD")
	a, _ := NewMoney("50.00", usd)
	b, _ := NewMoney("50.00", usd)
	c, _ := NewMoney("49.99", usd)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))

	ok, err := a.GreaterThanOrEqual(c)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.GreaterThanOrEqual(a)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, Zero(usd).IsZero())
	assert.True(t, a.IsPositive())
	assert.False(t, Zero(usd).IsPositive())
}

func TestCurrency_Normalization(t *testing.T) {
	c, err := NewCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", c.Code())

	_, err = NewCurrency("US")
	assert.Error(t, err)
	_, err = NewCurrency("USDT")
	assert.Error(t, err)
	_, err = NewCurrency("U5D")
	assert.Error(t, err)
}
