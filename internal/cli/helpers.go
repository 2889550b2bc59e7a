package cli

import (
	"fmt"
	"strconv"
	"time"
)

// timestampFormats lists the accepted --from/--to layouts. Layouts
// without an explicit offset are read as UTC.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a --from/--to value against the accepted layouts.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (use RFC3339, \"2006-01-02 15:04:05\", or \"2006-01-02\")", s)
}

// parseDay parses a --day value, a calendar date only.
func parseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q (use YYYY-MM-DD)", s)
	}
	return t, nil
}

// formatOptUint renders a nullable numeric column, "-" when absent.
func formatOptUint(v *uint64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(*v, 10)
}

// formatOptString renders a nullable text column, "-" when absent.
func formatOptString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
