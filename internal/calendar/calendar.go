// Package calendar holds the date arithmetic used to derive anniversaries and
// recency. Every function works on calendar days in one explicit location:
// instants are first truncated to start of day in that location, then whole
// days are counted between the two dates. Nothing here returns an error; an
// absent anchor yields ok == false.
package calendar

import "time"

// Clock abstracts "now" so derivations are reproducible in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// DateOnly truncates t to midnight of its calendar day in loc.
// A nil loc means UTC.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween counts calendar days from a to b (b - a) in loc. The count is
// taken on the civil dates so DST transitions never shift it by one.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	da := DateOnly(a, loc)
	db := DateOnly(b, loc)
	ua := time.Date(da.Year(), da.Month(), da.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(db.Year(), db.Month(), db.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// Occurrence is the next yearly repetition of an anchor date.
type Occurrence struct {
	Date      time.Time `json:"date"`
	DaysUntil int       `json:"days_until"`
}

// NextAnnualOccurrence returns the next date on or after today that shares the
// anchor's month and day. An anchor on Feb 29 falls on Mar 1 in non-leap
// years. ok is false when anchor is nil or zero.
func NextAnnualOccurrence(anchor *time.Time, today time.Time, loc *time.Location) (Occurrence, bool) {
	if anchor == nil || anchor.IsZero() {
		return Occurrence{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	day := DateOnly(today, loc)
	// Birthdays are stored as dates; read month/day in the anchor's own location
	// so a UTC-midnight date never slides to the previous day.
	month, dom := anchor.Month(), anchor.Day()

	next := anniversaryIn(day.Year(), month, dom, loc)
	if next.Before(day) {
		next = anniversaryIn(day.Year()+1, month, dom, loc)
	}
	return Occurrence{Date: next, DaysUntil: DaysBetween(day, next, loc)}, true
}

func anniversaryIn(year int, month time.Month, day int, loc *time.Location) time.Time {
	if month == time.February && day == 29 && !IsLeap(year) {
		return time.Date(year, time.March, 1, 0, 0, 0, 0, loc)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// RecencyInDays returns the whole days elapsed from event to now. Events
// later than now count as 0. ok is false when there is no event.
func RecencyInDays(event *time.Time, now time.Time, loc *time.Location) (int, bool) {
	if event == nil || event.IsZero() {
		return 0, false
	}
	days := DaysBetween(*event, now, loc)
	if days < 0 {
		days = 0
	}
	return days, true
}

// Latest returns the most recent of the given instants, ignoring nil and zero
// values. It returns nil when none is set.
func Latest(times ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range times {
		if t == nil || t.IsZero() {
			continue
		}
		if out == nil || t.After(*out) {
			v := *t
			out = &v
		}
	}
	return out
}
