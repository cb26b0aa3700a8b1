// Package dateutil provides the date-only arithmetic the schedule and lab
// engines are built on. All comparisons in the tracker ignore time-of-day,
// so callers truncate with DateOnly before comparing.
package dateutil

import (
	"math"
	"time"
)

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the floor of the number of whole days from a to b.
// The result is negative when b precedes a. Callers are expected to pass
// date-only values; the inputs are truncated defensively anyway so that a
// stray time-of-day cannot shift the count across a midnight boundary.
func DaysBetween(a, b time.Time) int {
	a = DateOnly(a)
	b = DateOnly(b)
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

// WeekdayIndex returns the weekday of t as 0..6 with Sunday = 0. This is
// the single canonical ordering used across the whole engine.
func WeekdayIndex(t time.Time) int {
	return int(t.Weekday())
}

// AddDays adds a possibly fractional number of days to t. Used by interval
// schedules such as "every 3.5 days", where sub-day precision matters for
// the overdue comparison.
func AddDays(t time.Time, days float64) time.Time {
	return t.Add(time.Duration(days * 24 * float64(time.Hour)))
}
