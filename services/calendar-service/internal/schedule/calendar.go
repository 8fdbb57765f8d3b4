package schedule

import (
	"fmt"
	"time"
)

type NoticeUnit string

const (
	NoticeMinutes NoticeUnit = "minutes"
	NoticeHours   NoticeUnit = "hours"
	NoticeDays    NoticeUnit = "days"
	NoticeWeeks   NoticeUnit = "weeks"
)

func (u NoticeUnit) Duration(value int) time.Duration {
	switch u {
	case NoticeHours:
		return time.Duration(value) * time.Hour
	case NoticeDays:
		return time.Duration(value) * 24 * time.Hour
	case NoticeWeeks:
		return time.Duration(value) * 7 * 24 * time.Hour
	default:
		return time.Duration(value) * time.Minute
	}
}

// BookingConstraints are the calendar's slot-shaping scalars.
type BookingConstraints struct {
	BufferBefore       time.Duration
	BufferAfter        time.Duration
	MinimumNoticeValue int
	MinimumNoticeUnit  NoticeUnit
	BookingWindowDays  int
	SlotInterval       time.Duration
}

func (c BookingConstraints) MinimumNotice() time.Duration {
	if c.MinimumNoticeValue <= 0 {
		return 0
	}
	return c.MinimumNoticeUnit.Duration(c.MinimumNoticeValue)
}

// Calendar is the root aggregate: the default weekly schedule, recurring
// patterns, date overrides, the IANA timezone, and booking constraints.
// All resolution happens over one in-memory snapshot of this struct.
type Calendar struct {
	ID          string
	Timezone    string
	Weekly      WeeklySchedule
	Patterns    []RecurringPattern
	Overrides   []DateOverride
	Constraints BookingConstraints
}

func (c *Calendar) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: invalid timezone %q: %w", c.ID, c.Timezone, err)
	}
	return loc, nil
}

// Booking is an occupied interval owned by the external booking subsystem,
// consumed read-only to exclude taken time from slot generation.
type Booking struct {
	ID     string
	Start  time.Time
	End    time.Time
	Status string
}

const BookingStatusCancelled = "cancelled"
