package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		a     string
		b     string
		equal bool
	}{
		{"100.00", "100.00", true},
		{"100.00", "100.005", true}, // inside tolerance
		{"100.00", "100.01", false}, // exactly at tolerance
		{"100.00", "100.02", false},
		{"0", "0.009", true},
		{"-5.00", "-5.005", true},
		{"0.1", "0.2", false},
	}

	for _, test := range tests {
		a := decimal.RequireFromString(test.a)
		b := decimal.RequireFromString(test.b)
		assert.Equal(t, test.equal, Equal(a, b), "Equal(%s, %s)", test.a, test.b)
	}
}

func TestIsZeroWithin(t *testing.T) {
	assert.True(t, IsZeroWithin(decimal.Zero))
	assert.True(t, IsZeroWithin(decimal.RequireFromString("0.005")))
	assert.True(t, IsZeroWithin(decimal.RequireFromString("-0.005")))
	assert.False(t, IsZeroWithin(decimal.RequireFromString("0.01")))
	assert.False(t, IsZeroWithin(decimal.RequireFromString("1")))
}

func TestHasCentPrecision(t *testing.T) {
	assert.True(t, HasCentPrecision(decimal.RequireFromString("10.25")))
	assert.True(t, HasCentPrecision(decimal.RequireFromString("10")))
	assert.False(t, HasCentPrecision(decimal.RequireFromString("10.255")))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"1234.56", "1234.56", false},
		{"$1,234.56", "1234.56", false},
		{" 1,000 ", "1000", false},
		{"-42.10", "-42.1", false},
		{"($50.00)", "", true}, // parenthesized negatives are not supported
		{"", "", true},
		{"abc", "", true},
	}

	for _, test := range tests {
		got, err := ParseAmount(test.input)
		if test.wantErr {
			assert.Error(t, err, "input %q", test.input)
			continue
		}
		require.NoError(t, err, "input %q", test.input)
		assert.True(t, got.Equal(decimal.RequireFromString(test.expected)),
			"ParseAmount(%q) = %s, want %s", test.input, got, test.expected)
	}
}
