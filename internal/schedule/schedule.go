package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency determines how a task's next execution time is derived.
type Frequency string

const (
	Once   Frequency = "once"
	Hourly Frequency = "hourly"
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// Frequencies lists all valid frequency values.
var Frequencies = []Frequency{Once, Hourly, Daily, Weekly}

// ParseFrequency validates a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Frequencies {
		if f == valid {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid frequency %q: must be one of once, hourly, daily, weekly", s)
}

// weekdayNames maps lowercase weekday names to their index, Monday=0.
var weekdayNames = map[string]int{
	"monday":    0,
	"tuesday":   1,
	"wednesday": 2,
	"thursday":  3,
	"friday":    4,
	"saturday":  5,
	"sunday":    6,
}

var weekdayLabels = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// ParseWeekday converts a weekday name to its index (Monday=0). Matching is
// case-insensitive.
func ParseWeekday(name string) (int, error) {
	idx, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q: must be one of monday, tuesday, wednesday, thursday, friday, saturday, sunday", name)
	}
	return idx, nil
}

// WeekdayName renders a weekday index (Monday=0) as a capitalized name.
// Out-of-range indexes render as an empty string.
func WeekdayName(idx int) string {
	if idx < 0 || idx >= len(weekdayLabels) {
		return ""
	}
	return weekdayLabels[idx]
}

// ParseClock parses a "HH:MM" time-of-day string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: use HH:MM (e.g. 14:30)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time %q: hour out of range", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}
	return hour, minute, nil
}

// mondayIndex converts time.Weekday (Sunday=0) to the Monday=0 convention.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// Next computes the next execution instant after base for a recurring task.
// The computation is civil: it operates in base's location.
//
//   - hourly: base + 1h, no alignment.
//   - daily: base's date at timeOfDay; rolls to tomorrow if that instant is not
//     strictly after base.
//   - weekly: the next occurrence of weekday (Monday=0) at timeOfDay, always
//     1-7 days ahead, never the same instant.
//
// Any degenerate combination (unknown frequency, unparseable time) falls back
// to base + 1h rather than failing; a task with a broken schedule keeps running
// hourly instead of silently dying.
func Next(freq Frequency, timeOfDay string, weekday int, base time.Time) time.Time {
	switch freq {
	case Hourly:
		return base.Add(time.Hour)

	case Daily:
		hour, minute, err := ParseClock(timeOfDay)
		if err != nil {
			break
		}
		next := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
		if !next.After(base) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case Weekly:
		if weekday < 0 || weekday > 6 {
			break
		}
		hour, minute, err := ParseClock(timeOfDay)
		if err != nil {
			break
		}
		daysAhead := weekday - mondayIndex(base.Weekday())
		if daysAhead <= 0 {
			daysAhead += 7
		}
		target := base.AddDate(0, 0, daysAhead)
		return time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, base.Location())
	}

	// Permissive default for anything unmatched.
	return base.Add(time.Hour)
}
