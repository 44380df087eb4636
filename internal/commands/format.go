package commands

import (
	"fmt"
	"strings"
	"time"

	"bbledger/internal/core"
)

const dateLayout = "2006-01-02"

// parseDate reads a YYYY-MM-DD day in UTC; empty means today.
func parseDate(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return core.StartOfDay(now), nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// monthFlag turns a 1-12 month into the zero-based month used by budgets.
// Zero selects the current month.
func monthFlag(month, year int, now time.Time) (int, int, error) {
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	return month - 1, year, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
