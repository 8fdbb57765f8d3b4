package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func businessHoursCalendar(t *testing.T, tz string) *Calendar {
	t.Helper()
	weekly := WeeklySchedule{}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		weekly[wd] = DayAvailability{
			Enabled: true,
			Blocks:  []TimeBlock{block(t, "09:00", "17:00")},
		}
	}
	weekly[time.Saturday] = DayAvailability{}
	weekly[time.Sunday] = DayAvailability{}
	return &Calendar{
		ID:       "cal-1",
		Timezone: tz,
		Weekly:   weekly,
	}
}

func TestResolve_WeeklyDefault(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	tue, _ := ParseDate("2026-01-13")

	days, err := Resolve(cal, tue, tue)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	want := []Interval{{
		Start: time.Date(2026, 1, 13, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 13, 16, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("expected %v, got %v", want, days[0].Intervals)
	}
}

func TestResolve_DisabledDayIsClosed(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	sat, _ := ParseDate("2026-01-17")

	days, err := Resolve(cal, sat, sat)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(days[0].Intervals) != 0 {
		t.Fatalf("Saturday should be closed, got %v", days[0].Intervals)
	}
}

func TestResolve_OverrideClosedIsTerminal(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	tue, _ := ParseDate("2026-01-13")
	cal.Overrides = []DateOverride{{ID: "o1", Date: tue, Available: false, Reason: "holiday"}}
	// A matching pattern must not reopen the day.
	cal.Patterns = []RecurringPattern{weeklyPattern(t, "2026-01-01", time.Tuesday)}

	days, err := Resolve(cal, tue, tue)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(days[0].Intervals) != 0 {
		t.Fatalf("closed override must win, got %v", days[0].Intervals)
	}
}

func TestResolve_OverrideExplicitTimes(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	tue, _ := ParseDate("2026-01-13")
	start := mustTime(t, "12:00")
	end := mustTime(t, "15:00")
	cal.Overrides = []DateOverride{{ID: "o1", Date: tue, Available: true, Start: &start, End: &end}}

	days, err := Resolve(cal, tue, tue)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []Interval{{
		Start: time.Date(2026, 1, 13, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 13, 14, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("override times must replace the day, got %v", days[0].Intervals)
	}
}

func TestResolve_OverrideForcesOpenOnDisabledDay(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	sat, _ := ParseDate("2026-01-17")
	// Saturday is disabled but its stored blocks still exist.
	cal.Weekly[time.Saturday] = DayAvailability{
		Enabled: false,
		Blocks:  []TimeBlock{block(t, "10:00", "13:00")},
	}
	cal.Overrides = []DateOverride{{ID: "o1", Date: sat, Available: true}}

	days, err := Resolve(cal, sat, sat)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []Interval{{
		Start: time.Date(2026, 1, 17, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("override without times should fall back to stored hours, got %v", days[0].Intervals)
	}
}

func TestResolve_PatternsAreAdditive(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	mon, _ := ParseDate("2026-01-12")

	morning := weeklyPattern(t, "2026-01-01", time.Monday)
	morning.Weekly.Blocks = []TimeBlock{block(t, "08:00", "10:00")}
	evening := weeklyPattern(t, "2026-01-01", time.Monday)
	evening.Weekly.Blocks = []TimeBlock{block(t, "18:00", "20:00")}
	cal.Patterns = []RecurringPattern{morning, evening}

	days, err := Resolve(cal, mon, mon)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []Interval{
		{Start: time.Date(2026, 1, 12, 7, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)},
		{Start: time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 12, 19, 0, 0, 0, time.UTC)},
	}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("expected union of both patterns, got %v", days[0].Intervals)
	}
}

func TestResolve_OverlappingPatternBlocksMerge(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	mon, _ := ParseDate("2026-01-12")

	a := weeklyPattern(t, "2026-01-01", time.Monday)
	a.Weekly.Blocks = []TimeBlock{block(t, "09:00", "13:00")}
	b := weeklyPattern(t, "2026-01-01", time.Monday)
	b.Weekly.Blocks = []TimeBlock{block(t, "12:00", "16:00")}
	cal.Patterns = []RecurringPattern{a, b}

	days, err := Resolve(cal, mon, mon)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []Interval{{
		Start: time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("overlapping pattern hours must merge, got %v", days[0].Intervals)
	}
}

func TestResolve_BiweeklyOffWeekFallsBackToWeeklyDefault(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	start, _ := ParseDate("2026-01-05") // a Monday, so week 1 starts here
	cal.Patterns = []RecurringPattern{{
		Type:      PatternBiweekly,
		Name:      "alternating",
		StartDate: start,
		Active:    true,
		Biweekly: &BiweeklyPattern{
			Week1Days:   Weekdays(time.Monday),
			Week2Days:   Weekdays(time.Wednesday),
			Week1Blocks: []TimeBlock{block(t, "06:00", "08:00")},
			Week2Blocks: []TimeBlock{block(t, "18:00", "20:00")},
		},
	}}

	// Monday of week 2: the pattern does not apply, so the day uses the
	// weekly default rather than going empty.
	mon2, _ := ParseDate("2026-01-12")
	days, err := Resolve(cal, mon2, mon2)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []Interval{{
		Start: time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("off-week day should use the weekly default, got %v", days[0].Intervals)
	}

	// Monday of week 1 uses the pattern's hours instead.
	days, err = Resolve(cal, start, start)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want = []Interval{{
		Start: time.Date(2026, 1, 5, 5, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("week 1 day should use the pattern hours, got %v", days[0].Intervals)
	}
}

func TestResolve_PatternWithEmptyBlocksFallsBackToWeeklyDefault(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	mon, _ := ParseDate("2026-01-12")

	// The pattern applies to Mondays but carries no hours at all. It
	// contributes nothing, so the day keeps its weekly default instead of
	// being treated as pattern-closed.
	p := weeklyPattern(t, "2026-01-01", time.Monday)
	p.Weekly.Blocks = []TimeBlock{}
	cal.Patterns = []RecurringPattern{p}

	days, err := Resolve(cal, mon, mon)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []Interval{{
		Start: time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("empty-hours pattern must not close the day, got %v", days[0].Intervals)
	}
}

func TestResolve_InactivePatternExcluded(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	mon, _ := ParseDate("2026-01-12")

	p := weeklyPattern(t, "2026-01-01", time.Monday)
	p.Weekly.Blocks = []TimeBlock{block(t, "06:00", "07:00")}
	p.Active = false
	cal.Patterns = []RecurringPattern{p}

	days, err := Resolve(cal, mon, mon)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// Falls back to the weekly default.
	want := []Interval{{
		Start: time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(days[0].Intervals, want) {
		t.Fatalf("inactive pattern must be ignored, got %v", days[0].Intervals)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	cal.Patterns = []RecurringPattern{weeklyPattern(t, "2026-01-01", time.Monday, time.Thursday)}
	from, _ := ParseDate("2026-01-12")
	to, _ := ParseDate("2026-01-25")

	first, err := Resolve(cal, from, to)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	second, err := Resolve(cal, from, to)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolution must be deterministic over an unchanged snapshot")
	}
}

func TestResolve_DSTGapBlockFails(t *testing.T) {
	loadLoc(t, "America/New_York")
	cal := businessHoursCalendar(t, "America/New_York")
	gapDay, _ := ParseDate("2026-03-08") // spring-forward Sunday
	cal.Weekly[time.Sunday] = DayAvailability{
		Enabled: true,
		Blocks:  []TimeBlock{block(t, "02:30", "03:30")},
	}

	_, err := Resolve(cal, gapDay, gapDay)
	if !errors.Is(err, ErrAmbiguousLocalTime) {
		t.Fatalf("expected ErrAmbiguousLocalTime, got %v", err)
	}
}

func TestResolve_DuplicateOverrideRejected(t *testing.T) {
	loadLoc(t, "Europe/Amsterdam")
	cal := businessHoursCalendar(t, "Europe/Amsterdam")
	tue, _ := ParseDate("2026-01-13")
	cal.Overrides = []DateOverride{
		{ID: "o1", Date: tue, Available: false},
		{ID: "o2", Date: tue, Available: true},
	}

	_, err := Resolve(cal, tue, tue)
	if !errors.Is(err, ErrDuplicateOverride) {
		t.Fatalf("expected ErrDuplicateOverride, got %v", err)
	}
}

func TestResolve_InvertedRange(t *testing.T) {
	cal := businessHoursCalendar(t, "UTC")
	from, _ := ParseDate("2026-01-14")
	to, _ := ParseDate("2026-01-13")
	if _, err := Resolve(cal, from, to); err == nil {
		t.Fatalf("inverted range should fail")
	}
}
