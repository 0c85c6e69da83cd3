package utils

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used for rollup keys and query parameters.
const DateLayout = "2006-01-02"

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns the half-open interval [start, end) covering t's calendar day in loc.
// end is computed with AddDate so DST transitions yield 23 or 25 hour days.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfDay(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// DateKey formats t's calendar day in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return StartOfDay(t, loc).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD value as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}
