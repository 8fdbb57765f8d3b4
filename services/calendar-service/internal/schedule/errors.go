package schedule

import "errors"

// Validation errors detected at the write boundary. All are rejected before
// any state mutation; resolution itself never fails on well-formed input.
var (
	// ErrInvalidTimeBlock marks a block whose start is not before its end,
	// or whose times are out of range.
	ErrInvalidTimeBlock = errors.New("invalid time block")

	// ErrOverlappingTimeBlock marks two blocks in one day sharing an instant,
	// including exact duplicates.
	ErrOverlappingTimeBlock = errors.New("overlapping time blocks")

	// ErrDuplicateOverride marks two date overrides on the same calendar date.
	ErrDuplicateOverride = errors.New("duplicate date override")

	// ErrAmbiguousLocalTime marks a wall-clock time that does not exist in the
	// calendar's timezone (spring-forward gap).
	ErrAmbiguousLocalTime = errors.New("ambiguous local time")

	// ErrInvalidDuration marks a non-positive service duration.
	ErrInvalidDuration = errors.New("invalid service duration")

	// ErrPatternDateRange marks a recurring pattern whose start date falls
	// after its end date.
	ErrPatternDateRange = errors.New("pattern start date after end date")
)
