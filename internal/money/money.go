// Package money holds the shared monetary helpers for the accounting
// core. Every component that compares currency amounts goes through the
// single Tolerance constant defined here so the posting check and the
// reporting validity check cannot drift apart.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum absolute difference at which two currency
// amounts are still considered equal (0.01 currency units).
var Tolerance = decimal.New(1, -2)

// Equal reports whether a and b are equal within Tolerance.
func Equal(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// IsZeroWithin reports whether d is zero within Tolerance.
func IsZeroWithin(d decimal.Decimal) bool {
	return d.Abs().LessThan(Tolerance)
}

// HasCentPrecision reports whether d carries no more than two decimal
// places.
func HasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// ParseAmount parses a human-entered amount string. Currency symbols,
// thousands separators and surrounding whitespace are stripped before
// parsing; anything left that is not a plain decimal number is an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
