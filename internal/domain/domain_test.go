package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trakka/internal/apperr"
)

func TestMinutesFrom(t *testing.T) {
	m, err := MinutesFrom(90)
	require.NoError(t, err)
	assert.Equal(t, 90, m)

	for _, n := range []int{0, -5} {
		_, err := MinutesFrom(n)
		assert.ErrorIs(t, err, apperr.ErrInvalidDuration, "n=%d", n)
	}
}

func TestMinutesBetweenRoundTrip(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	start, err := ParseClock(day, "09:00", time.UTC)
	require.NoError(t, err)
	end, err := ParseClock(day, "11:00", time.UTC)
	require.NoError(t, err)

	minutes, err := MinutesBetween(start, end)
	require.NoError(t, err)
	assert.Equal(t, 120, minutes)
	assert.Equal(t, 2.0, Hours(minutes))
}

func TestMinutesBetweenRejectsBadIntervals(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	nine, _ := ParseClock(day, "09:00", time.UTC)
	eight, _ := ParseClock(day, "08:00", time.UTC)

	_, err := MinutesBetween(nine, eight)
	assert.ErrorIs(t, err, apperr.ErrInvalidInterval)
	_, err = MinutesBetween(nine, nine)
	assert.ErrorIs(t, err, apperr.ErrInvalidInterval)

	// 20 seconds rounds to zero minutes.
	short, _ := ParseClock(day, "09:00:20", time.UTC)
	_, err = MinutesBetween(nine, short)
	assert.ErrorIs(t, err, apperr.ErrInvalidDuration)

	// 90 seconds rounds up to two minutes.
	ninety, _ := ParseClock(day, "09:01:30", time.UTC)
	minutes, err := MinutesBetween(nine, ninety)
	require.NoError(t, err)
	assert.Equal(t, 2, minutes)
}

func TestParseClockRejectsGarbage(t *testing.T) {
	_, err := ParseClock(time.Now(), "nine o'clock", time.UTC)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestHoursRounding(t *testing.T) {
	assert.Equal(t, 0.02, Hours(1))
	assert.Equal(t, 0.78, Hours(47))
	assert.Equal(t, 7.5, Hours(450))
}

func TestElapsedMinutesFloor(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, ElapsedMinutes(start, start.Add(10*time.Second)))
	assert.Equal(t, 47, ElapsedMinutes(start, start.Add(47*time.Minute+59*time.Second)))
	assert.Equal(t, "01:05", FormatElapsed(65*time.Minute))
	assert.Equal(t, "00:00", FormatElapsed(-time.Second))
	assert.Equal(t, "45m", FormatMinutes(45))
	assert.Equal(t, "2h 05m", FormatMinutes(125))
}

func TestWeekOf(t *testing.T) {
	cases := []struct {
		date      string
		wantStart string
		wantEnd   string
	}{
		{"2024-03-04", "2024-03-04", "2024-03-10"}, // Monday
		{"2024-03-07", "2024-03-04", "2024-03-10"},
		{"2024-03-10", "2024-03-04", "2024-03-10"}, // Sunday
		{"2024-12-31", "2024-12-30", "2025-01-05"},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.date)
		require.NoError(t, err)
		start, end := WeekOf(d)
		assert.Equal(t, tc.wantStart, start.Format(DateLayout), tc.date)
		assert.Equal(t, tc.wantEnd, end.Format(DateLayout), tc.date)
		assert.Equal(t, time.Monday, start.Weekday())
	}
}

func TestWeekElapsed(t *testing.T) {
	sunday, _ := ParseDate("2024-03-10")
	assert.False(t, WeekElapsed(sunday, time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)))
	assert.True(t, WeekElapsed(sunday, time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)))
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	late := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-11", DateOf(late, loc).Format(DateLayout))
	assert.Equal(t, "2024-03-10", DateOf(late, time.UTC).Format(DateLayout))
}

func TestParseRoleAndMutability(t *testing.T) {
	r, err := ParseRole("manager")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, r)
	assert.True(t, r.Reviewer())
	assert.False(t, RoleWorker.Reviewer())
	_, err = ParseRole("boss")
	assert.Error(t, err)

	assert.True(t, TimesheetDraft.Mutable())
	assert.True(t, TimesheetRejected.Mutable())
	assert.False(t, TimesheetSubmitted.Mutable())
	assert.False(t, TimesheetApproved.Mutable())
}
