// Package schedule computes next-dose dates from a dosing cadence. The
// engine is pure: callers pass "today" explicitly, so every function is
// deterministic and trivially testable.
package schedule

import (
	"sort"
	"time"

	"github.com/protocol/protocol/pkg/dateutil"
)

// Mode selects which variant of the schedule spec is active.
type Mode string

const (
	ModeWeekly   Mode = "weekly"
	ModeInterval Mode = "interval"
)

// Spec is the user's configured dosing cadence. Exactly one variant is
// active at a time, selected by Mode. An empty WeeklyDays set is legal but
// inert: no next dose is computable.
type Spec struct {
	Mode               Mode           `json:"mode"`
	WeeklyDays         []time.Weekday `json:"weekly_days,omitempty"`
	IntervalDays       float64        `json:"interval_days,omitempty"`
	CustomIntervalDays *float64       `json:"custom_interval_days,omitempty"`
}

// EffectiveInterval returns the custom override when set, otherwise the
// preset interval.
func (s Spec) EffectiveInterval() float64 {
	if s.CustomIntervalDays != nil && *s.CustomIntervalDays > 0 {
		return *s.CustomIntervalDays
	}
	return s.IntervalDays
}

// sortedWeekdays returns the configured weekdays deduplicated and in
// ascending Sunday-first order.
func (s Spec) sortedWeekdays() []time.Weekday {
	seen := make(map[time.Weekday]bool, len(s.WeeklyDays))
	var days []time.Weekday
	for _, d := range s.WeeklyDays {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// NextDoseDate computes the next scheduled dose date, truncated to
// midnight, or nil when no next dose is computable (weekly mode with an
// empty day set).
//
// Weekly mode scans the configured weekdays in ascending order for the
// first one falling on or after today, wrapping to next week when every
// configured day has already passed.
//
// Interval mode boots with today when no dose has been logged yet, and
// collapses overdue doses to today: only "due now" vs "due later" is
// tracked, never a backlog. Fractional intervals (e.g. 3.5 days) are
// compared at sub-day precision against today's midnight, and the winning
// candidate is truncated to a date afterwards. A candidate landing at
// Jan 4 12:00 therefore yields Jan 4, and becomes "due today" at Jan 4
// 00:00, not Jan 3 or Jan 5.
func NextDoseDate(spec Spec, lastDose *time.Time, today time.Time) *time.Time {
	today = dateutil.DateOnly(today)

	switch spec.Mode {
	case ModeWeekly:
		days := spec.sortedWeekdays()
		if len(days) == 0 {
			return nil
		}
		todayIdx := dateutil.WeekdayIndex(today)
		for _, d := range days {
			if int(d) >= todayIdx {
				next := today.AddDate(0, 0, int(d)-todayIdx)
				return &next
			}
		}
		// All configured days fall earlier in the week: wrap to the first
		// configured day next week.
		next := today.AddDate(0, 0, 7-todayIdx+int(days[0]))
		return &next

	case ModeInterval:
		if lastDose == nil {
			return &today
		}
		candidate := dateutil.AddDays(dateutil.DateOnly(*lastDose), spec.EffectiveInterval())
		if !candidate.After(today) {
			return &today
		}
		next := dateutil.DateOnly(candidate)
		return &next
	}

	return nil
}

// IsTodayDoseDay reports whether today is a scheduled dose day. It is
// derived from NextDoseDate rather than recomputed so the two can never
// disagree.
func IsTodayDoseDay(spec Spec, lastDose *time.Time, today time.Time) bool {
	next := NextDoseDate(spec, lastDose, today)
	if next == nil {
		return false
	}
	return dateutil.DateOnly(*next).Equal(dateutil.DateOnly(today))
}

// UpcomingDoses returns the next n scheduled dose dates starting from
// today. For interval schedules each subsequent date is projected from the
// previous one; for weekly schedules the configured weekdays repeat.
func UpcomingDoses(spec Spec, lastDose *time.Time, today time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	var out []time.Time
	cursor := dateutil.DateOnly(today)
	prev := lastDose
	for len(out) < n {
		next := NextDoseDate(spec, prev, cursor)
		if next == nil {
			return out
		}
		out = append(out, *next)
		d := *next
		prev = &d
		cursor = next.AddDate(0, 0, 1)
	}
	return out
}
