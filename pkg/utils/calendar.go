package utils

import (
	"time"
)

// DateLayout is the layout of analysis dates.
const DateLayout = "2006-01-02"

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// LoadLocation resolves an IANA zone name. Unknown or empty names fall
// back to UTC so a bad zone never blocks an analysis.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CalendarDate returns the calendar day of t in loc.
func CalendarDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// NextMidnight returns the start of the next calendar day in loc.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
