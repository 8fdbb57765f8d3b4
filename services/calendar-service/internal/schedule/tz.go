package schedule

import (
	"fmt"
	"time"
)

// ToInstant converts a wall-clock day/time pair in loc to an absolute
// instant, resolving DST by IANA rules. A local time that does not exist
// (spring-forward gap) is rejected; a local time occurring twice (fall-back
// overlap) resolves to the first occurrence.
func ToInstant(d Date, lt LocalTime, loc *time.Location) (time.Time, error) {
	if lt == endOfDay {
		return ToInstant(d.AddDays(1), 0, loc)
	}
	t := time.Date(d.Year, d.Month, d.Day, lt.Hour(), lt.Minute(), 0, 0, loc)
	if !sameWall(t, d, lt) {
		// time.Date normalized the value, so the requested wall clock never
		// occurs on this date in loc.
		return time.Time{}, fmt.Errorf("%w: %s %s does not exist in %s", ErrAmbiguousLocalTime, d, lt, loc)
	}
	// When the wall clock repeats, time.Date may pick either instant; prefer
	// the earlier one. DST shifts are an hour in almost every zone, with a
	// handful of 30-minute zones.
	for _, shift := range []time.Duration{time.Hour, 30 * time.Minute} {
		if c := t.Add(-shift); sameWall(c, d, lt) {
			return c, nil
		}
	}
	return t, nil
}

// ToLocal is the inverse presentation-side conversion.
func ToLocal(instant time.Time, loc *time.Location) (Date, LocalTime) {
	t := instant.In(loc)
	return DateOf(t), NewLocalTime(t.Hour(), t.Minute())
}

func sameWall(t time.Time, d Date, lt LocalTime) bool {
	y, m, day := t.Date()
	return y == d.Year && m == d.Month && day == d.Day &&
		t.Hour() == lt.Hour() && t.Minute() == lt.Minute()
}
