// Package schedule computes installment due dates. All arithmetic works on
// calendar dates (year, month, day) in UTC so no timezone offset can move a
// due date by one day.
package schedule

import (
	"fmt"
	"time"
)

// DateLayout is the stored format of due dates
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// ParseDate reads the calendar date at the start of an ISO-8601 date or
// timestamp, ignoring any time and offset that follow it.
func ParseDate(s string) (time.Time, error) {
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseTimestamp parses a full ISO-8601 timestamp or a bare date
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FormatDate renders t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the calendar date of now in its own location
func Today(now time.Time) string {
	return FormatDate(now)
}

// EndOfMonth returns the last day of the given month
func EndOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1).Day()
}

// AddMonthsClamped moves months forward from (year, month) and places the
// result on anchorDay, clamped to the last day of the target month.
func AddMonthsClamped(year int, month time.Month, months, anchorDay int) time.Time {
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := min(anchorDay, EndOfMonth(first.Year(), first.Month()))
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts an ISO date by n calendar days
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// DaysBetween counts calendar days from a to b
func DaysBetween(a, b string) (int, error) {
	from, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	to, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	return int(to.Sub(from).Hours() / 24), nil
}
