// Package core provides the domain model shared by every layer: entities,
// calendar dates, amount parsing and identifiers.
//
// This file contains functions for parsing monetary amounts entered by users.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount bounds user input well above any household figure.
var maxAmount = decimal.NewFromInt(1_000_000_000)

// ParseAmount converts a decimal string to an amount rounded half-up to two
// decimal places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and ignores
// spaces and thousands underscores. Zero, negative and malformed values are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("8000")    -> 8000, nil
//	ParseAmount("12,345")  -> 12.35, nil
//	ParseAmount("-5")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() || d.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// NormalizeAmount validates an amount received as a number and rounds it to
// two decimal places. The bounds match ParseAmount.
func NormalizeAmount(a float64) (float64, error) {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, ErrInvalidAmount
	}
	d := decimal.NewFromFloat(a).Round(2)
	if !d.IsPositive() || d.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// RoundAmount rounds a computed amount to two decimal places for display.
func RoundAmount(a float64) float64 {
	return decimal.NewFromFloat(a).Round(2).InexactFloat64()
}

// FormatAmount renders an amount with two decimals and thousands separators,
// e.g. 8500 -> "8,500.00".
func FormatAmount(a float64) string {
	d := decimal.NewFromFloat(a).Round(2)
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
