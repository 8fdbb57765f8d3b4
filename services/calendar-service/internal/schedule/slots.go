package schedule

import (
	"time"
)

// GenerateSlots slices the open intervals into bookable slots of
// serviceDuration, honoring the calendar's buffers, minimum notice, booking
// window, and existing bookings (cancelled bookings never block). Returned
// slots are chronological and non-overlapping; an empty result is not an
// error.
func GenerateSlots(open []Interval, serviceDuration time.Duration, c BookingConstraints, bookings []Booking, now time.Time) ([]Interval, error) {
	if serviceDuration <= 0 {
		return nil, ErrInvalidDuration
	}
	step := c.SlotInterval
	if step <= 0 {
		step = serviceDuration
	}

	earliest := now.Add(c.MinimumNotice())
	var latest time.Time
	if c.BookingWindowDays > 0 {
		latest = now.AddDate(0, 0, c.BookingWindowDays)
	}

	var busy []Interval
	for _, b := range bookings {
		if b.Status == BookingStatusCancelled {
			continue
		}
		if b.End.After(b.Start) {
			busy = append(busy, Interval{Start: b.Start, End: b.End})
		}
	}

	var slots []Interval
	for _, win := range MergeIntervals(open) {
		for cursor := win.Start; ; cursor = cursor.Add(step) {
			start := cursor.Add(c.BufferBefore)
			end := start.Add(serviceDuration)
			if end.Add(c.BufferAfter).After(win.End) {
				break
			}
			if !latest.IsZero() && start.After(latest) {
				break
			}
			if start.Before(earliest) {
				continue
			}
			if overlapsAny(start, end, busy) {
				continue
			}
			// A step shorter than the slot footprint would otherwise emit
			// overlapping slots.
			if len(slots) > 0 && start.Before(slots[len(slots)-1].End) {
				continue
			}
			slots = append(slots, Interval{Start: start, End: end})
		}
	}
	return slots, nil
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
