// Package utils provides formatting and ticker helpers shared by the
// marketbrief renderers and front-ends.
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Missing is rendered in place of an absent value.
const Missing = "—"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatFloat renders an optional float using the shortest exact form,
// e.g. 189.5 → "189.5".
func FormatFloat(v *float64) string {
	if v == nil {
		return Missing
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatPct renders an optional percentage, e.g. 1.23 → "1.23%".
func FormatPct(v *float64) string {
	if v == nil {
		return Missing
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
}

// FormatString renders an optional string, returning def when it is nil or blank.
func FormatString(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return *v
}

// FormatMarketCap formats a market capitalisation compactly.
// e.g. 2.95e12 → "2.95T", 4.1e9 → "4.1B"
func FormatMarketCap(v *float64) string {
	if v == nil {
		return Missing
	}
	amount := math.Abs(*v)
	prefix := ""
	if *v < 0 {
		prefix = "-"
	}

	switch {
	case amount >= 1e12:
		return prefix + formatWithDecimals(amount/1e12) + "T"
	case amount >= 1e9:
		return prefix + formatWithDecimals(amount/1e9) + "B"
	case amount >= 1e6:
		return prefix + formatWithDecimals(amount/1e6) + "M"
	case amount >= 1e3:
		return prefix + formatWithDecimals(amount/1e3) + "K"
	default:
		return fmt.Sprintf("%s%.0f", prefix, amount)
	}
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
