// Package normalize holds the pure data-repair helpers used across the
// ingestion pipeline: locale-aware currency parsing and lenient date fixing.
package normalize

import (
	"strconv"
	"strings"
)

// Currency parses a currency-like string into a numeric amount. It accepts
// both European ("28.463,66") and US ("1,234.56") separator conventions and
// strips common currency symbols. Returns nil when the input is empty or
// does not parse.
func Currency(value string) *float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return nil
	}

	for _, sym := range []string{"$", "€", "£", "¥", "₹"} {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return nil
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		// The separator occurring later is the decimal point; the other is
		// a thousands separator.
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		// A comma within the last three characters reads as a decimal
		// point ("13,20"); anything earlier is a thousands separator.
		if len(cleaned)-strings.LastIndex(cleaned, ",") <= 3 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}
	// A lone dot is always treated as the decimal point.

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}
