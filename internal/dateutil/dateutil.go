package dateutil

import "time"

// Calendar-day helpers. All comparisons are done in the timestamp's own
// location at calendar-day granularity, not over rolling 24h windows.

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysAgo returns t shifted n calendar days into the past.
func DaysAgo(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, -n)
}

// WithinInterval reports whether t lies in [start, end], inclusive on
// both ends.
func WithinInterval(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// WeekdayIndex returns t's weekday as 0-6 with Sunday = 0.
func WeekdayIndex(t time.Time) int {
	return int(t.Weekday())
}

// FirstOfMonth reports whether t is the first day of its month.
func FirstOfMonth(t time.Time) bool {
	return t.Day() == 1
}
