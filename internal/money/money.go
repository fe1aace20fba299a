// Package money centralizes the rounding and parsing rules for drawer
// amounts: two decimal places, half-up, never negative in storage.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var zero = decimal.Zero

// Round2 rounds to two decimal places using half-up rounding.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampRound rounds to two decimal places and clamps negative results to
// zero before storage.
func ClampRound(d decimal.Decimal) decimal.Decimal {
	r := d.Round(2)
	if r.IsNegative() {
		return zero
	}
	return r
}

// Parse reads an amount out of a stored field. Malformed or empty values are
// treated as zero; the surrounding row is kept.
func Parse(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return zero
	}
	return d
}

// Format renders an amount with exactly two decimal places for the durable
// tables.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
