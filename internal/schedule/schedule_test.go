package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	for _, s := range []string{"once", "hourly", "daily", "weekly", "DAILY", " weekly "} {
		f, err := ParseFrequency(s)
		require.NoError(t, err, s)
		require.NotEmpty(t, f)
	}

	_, err := ParseFrequency("fortnightly")
	assert.Error(t, err)
	_, err = ParseFrequency("")
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	idx, err := ParseWeekday("monday")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = ParseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, 6, idx)

	idx, err = ParseWeekday("  WEDNESDAY ")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "Monday", WeekdayName(0))
	assert.Equal(t, "Sunday", WeekdayName(6))
	assert.Equal(t, "", WeekdayName(7))
	assert.Equal(t, "", WeekdayName(-1))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("09:00")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 0, m)

	h, m, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)

	for _, bad := range []string{"24:00", "12:60", "12", "ab:cd", "", "12:00:00"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestNext_Hourly(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	next := Next(Hourly, "", 0, base)
	assert.Equal(t, base.Add(time.Hour), next)
}

func TestNext_DailyBeforeScheduledTime(t *testing.T) {
	base := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	next := Next(Daily, "14:30", 0, base)
	assert.Equal(t, time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC), next)
}

func TestNext_DailyRollsToTomorrow(t *testing.T) {
	// 00:00 has already passed one second into the day.
	base := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	next := Next(Daily, "00:00", 0, base)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), next)
}

func TestNext_DailySameInstantRolls(t *testing.T) {
	// Exactly at the scheduled time: not strictly after, so tomorrow.
	base := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	next := Next(Daily, "14:30", 0, base)
	assert.Equal(t, time.Date(2024, 3, 16, 14, 30, 0, 0, time.UTC), next)
}

func TestNext_DailyAlwaysFuture(t *testing.T) {
	times := []string{"00:00", "09:15", "12:00", "23:59"}
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 48; i++ {
		b := base.Add(time.Duration(i) * 30 * time.Minute)
		for _, tod := range times {
			next := Next(Daily, tod, 0, b)
			assert.True(t, next.After(b), "daily next %v not after base %v (time %s)", next, b, tod)
		}
	}
}

func TestNext_WeeklyTargetAhead(t *testing.T) {
	// 2024-03-15 is a Friday (index 4). Target Sunday (6) at 09:00.
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	next := Next(Weekly, "09:00", 6, base)
	assert.Equal(t, time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC), next)
}

func TestNext_WeeklySameDayJumpsAWeek(t *testing.T) {
	// Friday targeting Friday: same day counts as passed, so +7.
	base := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	next := Next(Weekly, "09:00", 4, base)
	assert.Equal(t, time.Date(2024, 3, 22, 9, 0, 0, 0, time.UTC), next)
}

func TestNext_WeeklyWithinSevenDays(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for wd := 0; wd <= 6; wd++ {
		next := Next(Weekly, "10:00", wd, base)
		assert.True(t, next.After(base), "weekly next must be strictly after base (wd=%d)", wd)
		assert.False(t, next.After(base.AddDate(0, 0, 7)), "weekly next must be within 7 days (wd=%d, got %v)", wd, next)
	}
}

func TestNext_FallbackOnDegenerateInput(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	// Unknown frequency.
	assert.Equal(t, base.Add(time.Hour), Next(Frequency("never"), "", 0, base))
	// Daily with broken time string.
	assert.Equal(t, base.Add(time.Hour), Next(Daily, "nope", 0, base))
	// Weekly with out-of-range weekday.
	assert.Equal(t, base.Add(time.Hour), Next(Weekly, "09:00", 9, base))
	// Once never recomputes; treated as degenerate here.
	assert.Equal(t, base.Add(time.Hour), Next(Once, "", 0, base))
}

func TestNext_RespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Santo_Domingo")
	require.NoError(t, err)

	base := time.Date(2024, 3, 15, 8, 0, 0, 0, loc)
	next := Next(Daily, "14:30", 0, base)
	assert.Equal(t, loc, next.Location())
	assert.Equal(t, 14, next.Hour())
	assert.Equal(t, 30, next.Minute())
}
