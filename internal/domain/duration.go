package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"trakka/internal/apperr"
)

// MinutesFrom validates a manually entered duration.
func MinutesFrom(n int) (int, error) {
	if n <= 0 {
		return 0, apperr.ErrInvalidDuration.With("minutes", n)
	}
	return n, nil
}

// MinutesBetween returns end-start rounded to the nearest whole minute.
func MinutesBetween(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, apperr.ErrInvalidInterval.With("start", start.Format(time.RFC3339)).With("end", end.Format(time.RFC3339))
	}
	minutes := int(math.Round(end.Sub(start).Minutes()))
	if minutes < 1 {
		return 0, apperr.ErrInvalidDuration.With("minutes", minutes)
	}
	return minutes, nil
}

var clockLayouts = []string{"15:04", "15:04:05"}

// ParseClock places a time of day ("15:04" or "15:04:05") on the given date.
func ParseClock(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	return time.Time{}, apperr.New(apperr.InvalidInput, "invalid time of day %q", clock)
}

// Hours converts minutes to hours rounded to two decimals.
func Hours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}

// ElapsedMinutes is the whole minutes since start, never less than one.
func ElapsedMinutes(start, now time.Time) int {
	minutes := int(now.Sub(start) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// FormatElapsed renders a duration as HH:MM.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatMinutes renders a minute count as "1h 05m".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}
