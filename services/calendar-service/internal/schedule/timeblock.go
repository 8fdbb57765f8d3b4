package schedule

import (
	"fmt"
	"sort"
	"time"
)

// TimeBlock is one wall-clock interval within a single day.
type TimeBlock struct {
	ID    string    `json:"id,omitempty"`
	Start LocalTime `json:"start"`
	End   LocalTime `json:"end"`
}

// DayAvailability is one weekday's default hours. When Enabled is false the
// blocks are kept but ignored by resolution.
type DayAvailability struct {
	Enabled bool        `json:"enabled"`
	Blocks  []TimeBlock `json:"time_blocks"`
}

// WeeklySchedule maps every weekday to its default availability. It is the
// provider's always-present baseline.
type WeeklySchedule map[time.Weekday]DayAvailability

// ValidateBlocks checks one day's candidate blocks. It returns nil when the
// list is valid; the input is not modified.
func ValidateBlocks(blocks []TimeBlock) error {
	for _, b := range blocks {
		if !b.Start.Valid() || !b.End.Valid() {
			return fmt.Errorf("%w: %s-%s out of range", ErrInvalidTimeBlock, b.Start, b.End)
		}
		if b.Start >= b.End {
			return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidTimeBlock, b.Start, b.End)
		}
	}

	sorted := make([]TimeBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].End > sorted[i].Start {
			return fmt.Errorf("%w: %s-%s and %s-%s",
				ErrOverlappingTimeBlock,
				sorted[i-1].Start, sorted[i-1].End,
				sorted[i].Start, sorted[i].End)
		}
	}
	return nil
}

// Validate runs the block validator over every weekday.
func (ws WeeklySchedule) Validate() error {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if err := ValidateBlocks(ws[wd].Blocks); err != nil {
			return fmt.Errorf("%s: %w", wd, err)
		}
	}
	return nil
}
