package schedule

import (
	"errors"
	"testing"
	"time"
)

func loadLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone database missing %s: %v", name, err)
	}
	return loc
}

func TestToInstant_PlainConversion(t *testing.T) {
	loc := loadLoc(t, "Europe/Amsterdam")
	d, _ := ParseDate("2026-01-13")

	got, err := ToInstant(d, mustTime(t, "09:00"), loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 1, 13, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestToInstant_SpringForwardGap(t *testing.T) {
	loc := loadLoc(t, "America/New_York")
	// 2026-03-08 02:00 local jumps to 03:00; 02:30 never occurs.
	d, _ := ParseDate("2026-03-08")

	_, err := ToInstant(d, mustTime(t, "02:30"), loc)
	if !errors.Is(err, ErrAmbiguousLocalTime) {
		t.Fatalf("expected ErrAmbiguousLocalTime, got %v", err)
	}
}

func TestToInstant_FallBackPicksFirstOccurrence(t *testing.T) {
	loc := loadLoc(t, "America/New_York")
	// 2026-11-01 01:30 local occurs twice; the first occurrence is still EDT
	// (UTC-4), i.e. 05:30 UTC.
	d, _ := ParseDate("2026-11-01")

	got, err := ToInstant(d, mustTime(t, "01:30"), loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC)
	if !got.UTC().Equal(want) {
		t.Fatalf("expected first occurrence %s, got %s", want, got.UTC())
	}
}

func TestToInstant_EndOfDay(t *testing.T) {
	loc := loadLoc(t, "Europe/Amsterdam")
	d, _ := ParseDate("2026-01-13")

	got, err := ToInstant(d, endOfDay, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 1, 13, 23, 0, 0, 0, time.UTC) // next local midnight
	if !got.UTC().Equal(want) {
		t.Fatalf("expected %s, got %s", want, got.UTC())
	}
}

func TestToLocal_Inverse(t *testing.T) {
	loc := loadLoc(t, "Europe/Amsterdam")
	instant := time.Date(2026, 7, 1, 12, 45, 0, 0, time.UTC)

	d, lt := ToLocal(instant, loc)
	if d.String() != "2026-07-01" {
		t.Fatalf("unexpected date %s", d)
	}
	if lt.String() != "14:45" { // CEST is UTC+2
		t.Fatalf("unexpected local time %s", lt)
	}
}
