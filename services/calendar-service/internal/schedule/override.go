package schedule

import "fmt"

// DateOverride is a date-specific exception. Available=false closes the date
// regardless of any pattern or weekly default. Available=true with times set
// replaces the day's hours; with no times it forces the day open and defers
// to the pattern/weekly hours.
type DateOverride struct {
	ID        string     `json:"id,omitempty"`
	Date      Date       `json:"date"`
	Available bool       `json:"isAvailable"`
	Start     *LocalTime `json:"startTime,omitempty"`
	End       *LocalTime `json:"endTime,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func (o DateOverride) Validate() error {
	if o.Date.IsZero() {
		return fmt.Errorf("override: date required")
	}
	if (o.Start == nil) != (o.End == nil) {
		return fmt.Errorf("%w: override times must be set together", ErrInvalidTimeBlock)
	}
	if o.Start != nil {
		return ValidateBlocks([]TimeBlock{{Start: *o.Start, End: *o.End}})
	}
	return nil
}

// OverrideIndex gives O(1) lookup of an override by calendar date.
type OverrideIndex map[Date]DateOverride

// BuildOverrideIndex indexes the override list. The storage layer's unique
// constraint should already prevent duplicates; this re-validates as a
// safety net.
func BuildOverrideIndex(overrides []DateOverride) (OverrideIndex, error) {
	idx := make(OverrideIndex, len(overrides))
	for _, o := range overrides {
		if _, exists := idx[o.Date]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOverride, o.Date)
		}
		idx[o.Date] = o
	}
	return idx, nil
}
