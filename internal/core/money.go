// Package core holds the check model and the parsing and formatting
// helpers shared by the engines and the adapters.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads an amount as the spreadsheet sends it.
//
// Both "1234.56" and the es-AR form "1.234,56" are accepted, as well as a
// leading "$". When both separators appear the last one is the decimal mark.
// A lone comma is always decimal. A lone dot is decimal unless it is
// followed by exactly three digits more than once ("1.234.567").
//
// Examples:
//
//	ParseAmount("1234.56")   -> 1234.56
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("$ 1.500")   -> 1.5
//	ParseAmount("1.234.567") -> 1234567
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// AmountFromAny converts a decoded JSON cell into an amount. Non-numeric
// and missing values count as zero.
func AmountFromAny(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case decimal.Decimal:
		return t
	case string:
		d, err := ParseAmount(t)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		d, err := ParseAmount(fmt.Sprint(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	}
}

// FormatARS renders "$ 1.234,56".
func FormatARS(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatPlain renders two decimals with a dot, the CSV convention.
func FormatPlain(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatPercent renders a signed whole-number percentage.
// Halves round away from zero.
func FormatPercent(v float64) string {
	r := math.Round(v)
	if v > 0 {
		return "+" + strconv.FormatFloat(r, 'f', 0, 64) + "%"
	}
	return strconv.FormatFloat(r, 'f', 0, 64) + "%"
}
