package services

import (
	"math"
	"time"
)

// StartOfDay returns 00:00:00.000 of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable microsecond of t's calendar day.
// Postgres timestamps carry microsecond precision.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Microsecond)
}

// ReminderWindow is the inclusive expiry range [start of today, end of today+days].
func ReminderWindow(now time.Time, days int) (time.Time, time.Time) {
	y, m, d := now.Date()
	last := time.Date(y, m, d+days, 12, 0, 0, 0, now.Location())
	return StartOfDay(now), EndOfDay(last)
}

// DaysRemaining rounds the distance to expiry up to whole days.
// Zero or negative means the ITP has expired.
func DaysRemaining(expiry, now time.Time) int {
	days := math.Ceil(expiry.Sub(now).Hours() / 24)
	if days == 0 {
		return 0
	}
	return int(days)
}
