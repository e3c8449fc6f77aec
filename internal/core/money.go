// Package core provides the transaction model and money handling utilities.
//
// This file contains functions for parsing monetary amounts written with
// locale-specific separators and currency symbols into exact decimals.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// PercentScale converts ratios into percentage points.
var PercentScale = decimal.NewFromInt(100)

// ParseAmount converts a formatted amount into a signed decimal.
//
// Currency symbols, spaces and letters are ignored. A leading or trailing
// minus, or surrounding parentheses, make the value negative. When both "."
// and "," appear the last one is the decimal separator. A single separator
// followed by exactly three digits is read as a thousands separator.
//
// Examples:
//
//	ParseAmount("R$ 1.234,56") -> 1234.56
//	ParseAmount("-1,234.56")   -> -1234.56
//	ParseAmount("(50,00)")     -> -50
//	ParseAmount("10000.00")    -> 10000
//	ParseAmount("1.500")       -> 1500
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			digits++
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-' || r == '−':
			// Only a sign before the first digit or after the last one counts.
			if digits == 0 || strings.TrimSpace(s[i+len(string(r)):]) == "" {
				negative = !negative
			} else {
				return decimal.Zero, ErrInvalidAmount
			}
		case r == '+':
		default:
			// currency symbols, letters and spaces
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}

	cleaned, ok := normalizeSeparators(b.String())
	if !ok {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// HasExplicitSign reports whether a raw amount carries its own sign.
func HasExplicitSign(s string) bool {
	s = strings.TrimSpace(s)
	return strings.ContainsAny(s, "-−") || (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
}

func normalizeSeparators(s string) (string, bool) {
	s = strings.Trim(s, ".,")
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot < 0 && lastComma < 0:
		return s, true
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			if strings.Count(s, ",") > 1 {
				return "", false
			}
			return strings.Replace(s, ",", ".", 1), true
		}
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
		if strings.Count(s, ".") > 1 {
			return "", false
		}
		return s, true
	}

	sep := "."
	if lastComma >= 0 {
		sep = ","
	}
	if strings.Count(s, sep) > 1 {
		groups := strings.Split(s, sep)
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return "", false
			}
		}
		return strings.Join(groups, ""), true
	}
	idx := strings.Index(s, sep)
	if len(s)-idx-1 == 3 && idx > 0 && idx <= 3 && s[:idx] != "0" {
		return strings.Replace(s, sep, "", 1), true
	}
	return strings.Replace(s, sep, ".", 1), true
}

// Float returns the value as float64 for presentation.
// Use decimals for accumulation.
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
