// Package money converts between display amounts ("2.50") and the integer
// minor units (kopecks) the ledger stores.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorDigits is the number of fractional digits of the ledger currency.
const MinorDigits = 2

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Parse converts a decimal string into minor units.
// Amounts with more precision than MinorDigits, or that do not fit in int64
// minor units, are rejected.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	shifted := d.Shift(MinorDigits)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, MinorDigits)
	}
	if shifted.LessThan(minMinor) || shifted.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}

	return shifted.IntPart(), nil
}

// Format renders minor units as a fixed two-decimal string.
func Format(minor int64) string {
	return decimal.New(minor, -MinorDigits).StringFixed(MinorDigits)
}
