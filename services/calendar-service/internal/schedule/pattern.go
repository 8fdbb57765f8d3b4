package schedule

import (
	"fmt"
	"time"
)

type PatternType string

const (
	PatternWeekly   PatternType = "weekly"
	PatternBiweekly PatternType = "biweekly"
	PatternMonthly  PatternType = "monthly"
	PatternSeasonal PatternType = "seasonal"
)

type MonthlyOccurrence string

const (
	OccurrenceFirst MonthlyOccurrence = "first"
	OccurrenceLast  MonthlyOccurrence = "last"
)

// WeeklyPattern repeats on the same weekdays every week.
type WeeklyPattern struct {
	Days   WeekdaySet  `json:"days"`
	Blocks []TimeBlock `json:"timeSlots"`
}

// BiweeklyPattern alternates between two weekday/hour sets every seven days.
// Week 1 is the ISO week containing the pattern's start date.
type BiweeklyPattern struct {
	Week1Days   WeekdaySet  `json:"week1Days"`
	Week2Days   WeekdaySet  `json:"week2Days"`
	Week1Blocks []TimeBlock `json:"week1TimeSlots"`
	Week2Blocks []TimeBlock `json:"week2TimeSlots"`
}

// MonthlyPattern matches only the first or last occurrence of each selected
// weekday within a calendar month.
type MonthlyPattern struct {
	Days       WeekdaySet        `json:"days"`
	Occurrence MonthlyOccurrence `json:"occurrence"`
	Blocks     []TimeBlock       `json:"timeSlots"`
}

// SeasonalPattern restricts the weekdays to an inclusive month range, which
// may wrap the year boundary (e.g. November through February).
type SeasonalPattern struct {
	Days       WeekdaySet  `json:"days"`
	StartMonth time.Month  `json:"startMonth"`
	EndMonth   time.Month  `json:"endMonth"`
	Blocks     []TimeBlock `json:"timeSlots"`
}

// RecurringPattern is a tagged union: exactly one variant field is set,
// selected by Type. Inactive patterns are excluded from resolution entirely.
type RecurringPattern struct {
	ID        string
	Type      PatternType
	Name      string
	StartDate Date
	EndDate   *Date
	Active    bool

	Weekly   *WeeklyPattern
	Biweekly *BiweeklyPattern
	Monthly  *MonthlyPattern
	Seasonal *SeasonalPattern
}

func (p RecurringPattern) Validate() error {
	if p.StartDate.IsZero() {
		return fmt.Errorf("pattern %q: start date required", p.Name)
	}
	if p.EndDate != nil && p.StartDate.After(*p.EndDate) {
		return fmt.Errorf("%w: %s > %s", ErrPatternDateRange, p.StartDate, *p.EndDate)
	}
	switch p.Type {
	case PatternWeekly:
		if p.Weekly == nil {
			return fmt.Errorf("pattern %q: missing weekly data", p.Name)
		}
		return ValidateBlocks(p.Weekly.Blocks)
	case PatternBiweekly:
		if p.Biweekly == nil {
			return fmt.Errorf("pattern %q: missing biweekly data", p.Name)
		}
		if err := ValidateBlocks(p.Biweekly.Week1Blocks); err != nil {
			return err
		}
		return ValidateBlocks(p.Biweekly.Week2Blocks)
	case PatternMonthly:
		if p.Monthly == nil {
			return fmt.Errorf("pattern %q: missing monthly data", p.Name)
		}
		if p.Monthly.Occurrence != OccurrenceFirst && p.Monthly.Occurrence != OccurrenceLast {
			return fmt.Errorf("pattern %q: occurrence must be first or last", p.Name)
		}
		return ValidateBlocks(p.Monthly.Blocks)
	case PatternSeasonal:
		if p.Seasonal == nil {
			return fmt.Errorf("pattern %q: missing seasonal data", p.Name)
		}
		if p.Seasonal.StartMonth < time.January || p.Seasonal.StartMonth > time.December ||
			p.Seasonal.EndMonth < time.January || p.Seasonal.EndMonth > time.December {
			return fmt.Errorf("pattern %q: months must be 1-12", p.Name)
		}
		return ValidateBlocks(p.Seasonal.Blocks)
	default:
		return fmt.Errorf("unknown pattern type %q", p.Type)
	}
}

// inDateRange is the outer filter applied to every pattern type.
func (p RecurringPattern) inDateRange(d Date) bool {
	if d.Before(p.StartDate) {
		return false
	}
	if p.EndDate != nil && d.After(*p.EndDate) {
		return false
	}
	return true
}

// Matches reports whether date d is an instance of the pattern.
func (p RecurringPattern) Matches(d Date) bool {
	return p.BlocksOn(d) != nil
}

// BlocksOn returns the pattern's time blocks for date d, or nil when the
// pattern does not apply. For biweekly patterns the week's own slot list is
// selected.
func (p RecurringPattern) BlocksOn(d Date) []TimeBlock {
	if !p.inDateRange(d) {
		return nil
	}
	wd := d.Weekday()
	switch p.Type {
	case PatternWeekly:
		if p.Weekly == nil || !p.Weekly.Days.Has(wd) {
			return nil
		}
		return p.Weekly.Blocks
	case PatternBiweekly:
		if p.Biweekly == nil {
			return nil
		}
		if biweeklyWeekIndex(p.StartDate, d) == 0 {
			if !p.Biweekly.Week1Days.Has(wd) {
				return nil
			}
			return p.Biweekly.Week1Blocks
		}
		if !p.Biweekly.Week2Days.Has(wd) {
			return nil
		}
		return p.Biweekly.Week2Blocks
	case PatternMonthly:
		if p.Monthly == nil || !p.Monthly.Days.Has(wd) {
			return nil
		}
		if d.Day != occurrenceDay(d.Year, d.Month, wd, p.Monthly.Occurrence) {
			return nil
		}
		return p.Monthly.Blocks
	case PatternSeasonal:
		if p.Seasonal == nil || !p.Seasonal.Days.Has(wd) {
			return nil
		}
		if !monthInSeason(d.Month, p.Seasonal.StartMonth, p.Seasonal.EndMonth) {
			return nil
		}
		return p.Seasonal.Blocks
	default:
		return nil
	}
}

// weekStart returns the Monday of the ISO week containing d.
func weekStart(d Date) Date {
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return d.AddDays(-offset)
}

// biweeklyWeekIndex returns 0 for week 1 and 1 for week 2. Parity alternates
// every seven days from the ISO week containing the pattern start.
func biweeklyWeekIndex(start, d Date) int {
	weeks := weekStart(d).DaysSince(weekStart(start)) / 7
	idx := weeks % 2
	if idx < 0 {
		idx += 2
	}
	return idx
}

// occurrenceDay returns the day-of-month of the first or last occurrence of
// weekday wd within the given month.
func occurrenceDay(year int, month time.Month, wd time.Weekday, occ MonthlyOccurrence) int {
	if occ == OccurrenceLast {
		last := daysInMonth(year, month)
		for day := last; day > last-7; day-- {
			if NewDate(year, month, day).Weekday() == wd {
				return day
			}
		}
		return 0
	}
	for day := 1; day <= 7; day++ {
		if NewDate(year, month, day).Weekday() == wd {
			return day
		}
	}
	return 0
}

// monthInSeason treats the range as wrapping when start > end
// (e.g. November-February spans the year boundary).
func monthInSeason(m, start, end time.Month) bool {
	if start <= end {
		return m >= start && m <= end
	}
	return m >= start || m <= end
}
