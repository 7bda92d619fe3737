package normalize

import (
	"strconv"
	"strings"
	"time"
)

const canonicalLayout = "2006-01-02"

// lenientLayouts are tried in order for free-form dates. Month-first
// layouts come before day-first ones, so an ambiguous 05/04/2024 resolves
// as May 4th; an unambiguous 13/05/2024 still parses via the day-first
// fallbacks.
var lenientLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"2/1/2006",
	"01-02-2006",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"01.02.2006",
	"02.01.2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Date repairs an arbitrary date-like string into canonical yyyy-mm-dd
// form. A partial month/year date such as "01/27" or "03/2025" expands to
// the last calendar day of that month. Returns "" when nothing parses;
// never panics.
func Date(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}

	if fixed, ok := expandMonthYear(s); ok {
		return fixed
	}

	for _, layout := range lenientLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(canonicalLayout)
		}
	}

	if t, err := time.Parse(canonicalLayout, s); err == nil {
		return t.Format(canonicalLayout)
	}
	return ""
}

// expandMonthYear handles the two-token slash pattern MM/YY or MM/YYYY
// (total length <= 7), resolving to the last day of that month. Two-digit
// years are read as 2000+YY.
func expandMonthYear(s string) (string, bool) {
	if !strings.Contains(s, "/") || len(s) > 7 {
		return "", false
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", false
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}

	yearStr := parts[1]
	if len(yearStr) != 2 && len(yearStr) != 4 {
		return "", false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return "", false
	}
	if len(yearStr) == 2 {
		year += 2000
	}

	// Day 0 of the next month is the last day of this one.
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return last.Format(canonicalLayout), true
}
