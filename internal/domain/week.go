package domain

import (
	"time"

	"trakka/internal/apperr"
)

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.InvalidInput, err, "invalid date "+s)
	}
	return d, nil
}

// DateOf returns the calendar date of t as seen in loc, at UTC midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekOf returns the Monday and Sunday enclosing date.
func WeekOf(date time.Time) (start, end time.Time) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	start = day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// WeekElapsed reports whether today is strictly after the week's Sunday.
func WeekElapsed(weekEnd, today time.Time) bool {
	return DateOf(today, nil).After(DateOf(weekEnd, nil))
}
