package core

import "time"

// MonthRange returns the half-open [start, end) interval in UTC covering a
// budget month. month is zero based (0 = January).
func MonthRange(month, year int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// StartOfDay truncates t to midnight UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b. Negative when b is
// before a.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// WholeMonthsBetween counts whole calendar months from a to b; a month only
// counts once b's day of month has been reached. Negative when b is before a.
func WholeMonthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if months > 0 && b.Day() < a.Day() {
		months--
	} else if months < 0 && b.Day() > a.Day() {
		months++
	}
	return months
}
