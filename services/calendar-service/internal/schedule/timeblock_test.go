package schedule

import (
	"errors"
	"testing"
)

func mustTime(t *testing.T, s string) LocalTime {
	t.Helper()
	lt, err := ParseLocalTime(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return lt
}

func block(t *testing.T, start, end string) TimeBlock {
	t.Helper()
	return TimeBlock{Start: mustTime(t, start), End: mustTime(t, end)}
}

func TestValidateBlocks_Valid(t *testing.T) {
	blocks := []TimeBlock{
		block(t, "13:00", "17:00"),
		block(t, "09:00", "12:00"),
	}
	if err := ValidateBlocks(blocks); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	// Input order must be preserved; validation works on a copy.
	if blocks[0].Start != mustTime(t, "13:00") {
		t.Fatalf("input was reordered")
	}
}

func TestValidateBlocks_StartNotBeforeEnd(t *testing.T) {
	err := ValidateBlocks([]TimeBlock{block(t, "12:00", "12:00")})
	if !errors.Is(err, ErrInvalidTimeBlock) {
		t.Fatalf("expected ErrInvalidTimeBlock, got %v", err)
	}
	err = ValidateBlocks([]TimeBlock{block(t, "14:00", "09:00")})
	if !errors.Is(err, ErrInvalidTimeBlock) {
		t.Fatalf("expected ErrInvalidTimeBlock, got %v", err)
	}
}

func TestValidateBlocks_Overlap(t *testing.T) {
	err := ValidateBlocks([]TimeBlock{
		block(t, "09:00", "12:00"),
		block(t, "11:30", "13:00"),
	})
	if !errors.Is(err, ErrOverlappingTimeBlock) {
		t.Fatalf("expected ErrOverlappingTimeBlock, got %v", err)
	}
}

func TestValidateBlocks_ExactDuplicate(t *testing.T) {
	err := ValidateBlocks([]TimeBlock{
		block(t, "09:00", "12:00"),
		block(t, "09:00", "12:00"),
	})
	if !errors.Is(err, ErrOverlappingTimeBlock) {
		t.Fatalf("expected ErrOverlappingTimeBlock, got %v", err)
	}
}

func TestValidateBlocks_AdjacentIsFine(t *testing.T) {
	err := ValidateBlocks([]TimeBlock{
		block(t, "09:00", "12:00"),
		block(t, "12:00", "17:00"),
	})
	if err != nil {
		t.Fatalf("adjacent blocks should be valid, got %v", err)
	}
}

func TestParseLocalTime_EndOfDay(t *testing.T) {
	lt, err := ParseLocalTime("24:00")
	if err != nil {
		t.Fatalf("24:00 should parse, got %v", err)
	}
	if lt != endOfDay {
		t.Fatalf("expected end-of-day sentinel, got %d", lt)
	}
	if _, err := ParseLocalTime("24:01"); err == nil {
		t.Fatalf("24:01 should not parse")
	}
	if _, err := ParseLocalTime("9"); err == nil {
		t.Fatalf("missing minutes should not parse")
	}
}
