// Package money converts between integer cents and decimal strings.
//
// Amounts are carried as int64 cents everywhere inside the service so that
// totals are exact; decimal strings only appear at the edges (CSV import,
// CLI output, JSON display fields).
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Format renders cents as a fixed two-decimal string, e.g. 4597 -> "45.97".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParseCents parses a decimal amount ("19.99", "5", "0.5") into cents.
// More than two fractional digits are rejected rather than rounded.
func ParseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, errors.New("amount must not be negative")
	}
	c := d.Mul(hundred)
	if !c.Equal(c.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	return c.IntPart(), nil
}
