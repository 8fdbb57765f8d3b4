package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/schedule"
)

func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{schedule.ErrInvalidTimeBlock, "invalid_time_block"},
		{schedule.ErrOverlappingTimeBlock, "overlapping_time_block"},
		{schedule.ErrDuplicateOverride, "duplicate_override"},
		{schedule.ErrAmbiguousLocalTime, "ambiguous_local_time"},
		{schedule.ErrInvalidDuration, "invalid_duration"},
		{schedule.ErrPatternDateRange, "pattern_date_range_invalid"},
	}
	for _, tc := range cases {
		if got := errorKind(tc.err); got != tc.want {
			t.Fatalf("errorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	h := &CalendarHandler{}

	req := httptest.NewRequest("GET", "/api/v1/availability?calendar_id=cal-1&start=2026-01-05&end=2026-01-11", nil)
	id, from, to, ok := h.parseRange(httptest.NewRecorder(), req)
	if !ok {
		t.Fatal("expected valid range to parse")
	}
	if id != "cal-1" {
		t.Fatalf("calendar_id = %q", id)
	}
	if from.String() != "2026-01-05" || to.String() != "2026-01-11" {
		t.Fatalf("range = %s..%s", from, to)
	}

	bad := []string{
		"/x?start=2026-01-05&end=2026-01-11",                       // missing calendar_id
		"/x?calendar_id=c&start=05-01-2026&end=2026-01-11",         // bad date format
		"/x?calendar_id=c&start=2026-01-11&end=2026-01-05",         // inverted
		"/x?calendar_id=c&start=2026-01-01&end=2028-01-01",         // too large
		"/x?calendar_id=c&start=2026-01-05",                        // missing end
	}
	for _, target := range bad {
		rec := httptest.NewRecorder()
		if _, _, _, ok := h.parseRange(rec, httptest.NewRequest("GET", target, nil)); ok {
			t.Fatalf("expected %q to be rejected", target)
		}
		if rec.Code < 400 {
			t.Fatalf("expected error status for %q, got %d", target, rec.Code)
		}
	}
}
