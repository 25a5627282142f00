// Package timeutil provides the local-day boundaries behind the quick date
// filters (overdue, today, tomorrow, within a week, future).
package timeutil

import "time"

// DayStart returns midnight of the day containing t, in t's location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextDayStart returns midnight of the day after t.
func NextDayStart(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// DayAfterNextStart returns midnight two days after t.
func DayAfterNextStart(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 2)
}

// WeekAheadStart returns midnight eight days after t, the exclusive upper
// bound of the "within 7 days" bucket.
func WeekAheadStart(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 8)
}
