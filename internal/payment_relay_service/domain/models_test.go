package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestPaymentSettings_InRange(t *testing.T) {
	s := &PaymentSettings{MinAmount: decimal.NewFromInt(10), MaxAmount: decimal.NewFromInt(1000)}

	assert.True(t, s.InRange(10))
	assert.True(t, s.InRange(100))
	assert.True(t, s.InRange(1000))
	assert.False(t, s.InRange(9))
	assert.False(t, s.InRange(1001))
	assert.False(t, s.InRange(-5))
}

func TestParseConversionRate(t *testing.T) {
	rate, err := ParseConversionRate("credit_conversion_rate", strPtr(" 2.5 "))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("2.5")))

	_, err = ParseConversionRate("credit_conversion_rate", nil)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Message, "not configured")

	_, err = ParseConversionRate("credit_conversion_rate", strPtr("two"))
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Message, "not a number")
}

func TestClient_HasStripeCustomer(t *testing.T) {
	assert.False(t, (&Client{}).HasStripeCustomer())
	assert.False(t, (&Client{StripeCustomerID: strPtr("")}).HasStripeCustomer())
	assert.True(t, (&Client{StripeCustomerID: strPtr("cus_1")}).HasStripeCustomer())
}
