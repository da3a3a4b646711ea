package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used on every external surface.
const DateLayout = "2006-01-02"

// Midnight truncates t to the start of its calendar day in UTC.
func Midnight(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, &ValidationError{Field: field, Message: field + " is required"}
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: fmt.Sprintf("invalid %s %q: expected YYYY-MM-DD", field, v)}
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Midnight(b).Sub(Midnight(a)).Hours() / 24)
}
