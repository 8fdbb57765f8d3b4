package schedule

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func weeklyPattern(t *testing.T, start string, days ...time.Weekday) RecurringPattern {
	t.Helper()
	sd, err := ParseDate(start)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return RecurringPattern{
		Type:      PatternWeekly,
		Name:      "weekly",
		StartDate: sd,
		Active:    true,
		Weekly: &WeeklyPattern{
			Days:   Weekdays(days...),
			Blocks: []TimeBlock{block(t, "10:00", "14:00")},
		},
	}
}

func TestWeeklyPattern_Matches(t *testing.T) {
	p := weeklyPattern(t, "2026-01-05", time.Monday, time.Wednesday)

	mon, _ := ParseDate("2026-01-12")
	if !p.Matches(mon) {
		t.Fatalf("expected Monday to match")
	}
	tue, _ := ParseDate("2026-01-13")
	if p.Matches(tue) {
		t.Fatalf("Tuesday should not match")
	}
	// Before the start date.
	early, _ := ParseDate("2025-12-29")
	if p.Matches(early) {
		t.Fatalf("date before startDate should not match")
	}
}

func TestWeeklyPattern_EndDateBound(t *testing.T) {
	p := weeklyPattern(t, "2026-01-05", time.Monday)
	end, _ := ParseDate("2026-01-19")
	p.EndDate = &end

	if !p.Matches(end) {
		t.Fatalf("end date is inclusive")
	}
	after, _ := ParseDate("2026-01-26")
	if p.Matches(after) {
		t.Fatalf("date after endDate should not match")
	}
}

func TestBiweeklyPattern_WeekParity(t *testing.T) {
	start, _ := ParseDate("2026-01-05") // a Monday
	p := RecurringPattern{
		Type:      PatternBiweekly,
		Name:      "alternating",
		StartDate: start,
		Active:    true,
		Biweekly: &BiweeklyPattern{
			Week1Days:   Weekdays(time.Monday),
			Week2Days:   Weekdays(time.Wednesday),
			Week1Blocks: []TimeBlock{block(t, "09:00", "12:00")},
			Week2Blocks: []TimeBlock{block(t, "13:00", "16:00")},
		},
	}

	if !p.Matches(start) {
		t.Fatalf("start Monday is in week 1")
	}
	// The following Monday is in week 2, which only has Wednesday.
	mon2, _ := ParseDate("2026-01-12")
	if p.Matches(mon2) {
		t.Fatalf("Monday of week 2 should not match")
	}
	wed2, _ := ParseDate("2026-01-14")
	if !p.Matches(wed2) {
		t.Fatalf("Wednesday of week 2 should match")
	}
	blocks := p.BlocksOn(wed2)
	if len(blocks) != 1 || blocks[0].Start != mustTime(t, "13:00") {
		t.Fatalf("week 2 should use its own time slots, got %v", blocks)
	}
	// Parity flips back after 14 days.
	mon3, _ := ParseDate("2026-01-19")
	if !p.Matches(mon3) {
		t.Fatalf("Monday of week 3 is week 1 again")
	}
}

func TestBiweeklyPattern_MidweekStart(t *testing.T) {
	// Start on a Thursday: the whole ISO week containing it is week 1.
	start, _ := ParseDate("2026-01-08")
	p := RecurringPattern{
		Type:      PatternBiweekly,
		StartDate: start,
		Active:    true,
		Biweekly: &BiweeklyPattern{
			Week1Days:   Weekdays(time.Friday),
			Week2Days:   Weekdays(time.Friday),
			Week1Blocks: []TimeBlock{block(t, "09:00", "10:00")},
			Week2Blocks: []TimeBlock{block(t, "18:00", "19:00")},
		},
	}
	fri1, _ := ParseDate("2026-01-09")
	if got := p.BlocksOn(fri1); len(got) != 1 || got[0].Start != mustTime(t, "09:00") {
		t.Fatalf("Friday of the start week should use week 1 slots, got %v", got)
	}
	fri2, _ := ParseDate("2026-01-16")
	if got := p.BlocksOn(fri2); len(got) != 1 || got[0].Start != mustTime(t, "18:00") {
		t.Fatalf("Friday of the next week should use week 2 slots, got %v", got)
	}
}

func TestMonthlyPattern_LastFriday(t *testing.T) {
	start, _ := ParseDate("2026-01-01")
	p := RecurringPattern{
		Type:      PatternMonthly,
		StartDate: start,
		Active:    true,
		Monthly: &MonthlyPattern{
			Days:       Weekdays(time.Friday),
			Occurrence: OccurrenceLast,
			Blocks:     []TimeBlock{block(t, "10:00", "12:00")},
		},
	}

	// May 2026 has 31 days; its Fridays are the 1st, 8th, 15th, 22nd and 29th.
	last, _ := ParseDate("2026-05-29")
	if !p.Matches(last) {
		t.Fatalf("last Friday of May should match")
	}
	notLast, _ := ParseDate("2026-05-22")
	if p.Matches(notLast) {
		t.Fatalf("the 22nd is a Friday but not the last one")
	}
}

func TestMonthlyPattern_FirstFriday(t *testing.T) {
	start, _ := ParseDate("2026-01-01")
	p := RecurringPattern{
		Type:      PatternMonthly,
		StartDate: start,
		Active:    true,
		Monthly: &MonthlyPattern{
			Days:       Weekdays(time.Friday),
			Occurrence: OccurrenceFirst,
			Blocks:     []TimeBlock{block(t, "10:00", "12:00")},
		},
	}
	first, _ := ParseDate("2026-05-01")
	if !p.Matches(first) {
		t.Fatalf("May 1st 2026 is the first Friday")
	}
	second, _ := ParseDate("2026-05-08")
	if p.Matches(second) {
		t.Fatalf("the 8th is not the first Friday")
	}
}

func TestSeasonalPattern_WrapsYearEnd(t *testing.T) {
	start, _ := ParseDate("2025-01-01")
	p := RecurringPattern{
		Type:      PatternSeasonal,
		StartDate: start,
		Active:    true,
		Seasonal: &SeasonalPattern{
			Days:       Weekdays(time.Saturday),
			StartMonth: time.November,
			EndMonth:   time.February,
			Blocks:     []TimeBlock{block(t, "08:00", "11:00")},
		},
	}

	dec, _ := ParseDate("2025-12-06") // Saturday in December
	if !p.Matches(dec) {
		t.Fatalf("December is inside the wrapped Nov-Feb season")
	}
	jan, _ := ParseDate("2026-01-03") // Saturday in January
	if !p.Matches(jan) {
		t.Fatalf("January is inside the wrapped Nov-Feb season")
	}
	jun, _ := ParseDate("2026-06-06") // Saturday in June
	if p.Matches(jun) {
		t.Fatalf("June is outside the season")
	}
}

func TestPatternValidate_DateRange(t *testing.T) {
	p := weeklyPattern(t, "2026-03-01", time.Monday)
	end, _ := ParseDate("2026-02-01")
	p.EndDate = &end
	if err := p.Validate(); !errors.Is(err, ErrPatternDateRange) {
		t.Fatalf("expected ErrPatternDateRange, got %v", err)
	}
}

func TestPatternValidate_MissingVariant(t *testing.T) {
	p := weeklyPattern(t, "2026-03-01", time.Monday)
	p.Type = PatternMonthly // variant field no longer matches the type
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for missing monthly data")
	}
}

func TestPatternJSON_RoundTripVariant(t *testing.T) {
	start, _ := ParseDate("2026-01-05")
	in := RecurringPattern{
		ID:        "p1",
		Type:      PatternBiweekly,
		Name:      "alternating",
		StartDate: start,
		Active:    true,
		Biweekly: &BiweeklyPattern{
			Week1Days:   Weekdays(time.Monday),
			Week2Days:   Weekdays(time.Wednesday),
			Week1Blocks: []TimeBlock{block(t, "09:00", "12:00")},
			Week2Blocks: []TimeBlock{block(t, "13:00", "16:00")},
		},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out RecurringPattern
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Type != PatternBiweekly || out.Biweekly == nil {
		t.Fatalf("variant lost in round trip: %+v", out)
	}
	if !out.Biweekly.Week2Days.Has(time.Wednesday) {
		t.Fatalf("week 2 day set lost")
	}
	if out.Weekly != nil || out.Monthly != nil || out.Seasonal != nil {
		t.Fatalf("only one variant may be set")
	}
}
