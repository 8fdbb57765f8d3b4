package schedule

import "fmt"

// ResolvedDay is one date's open intervals in absolute (UTC) time.
type ResolvedDay struct {
	Date      Date
	Intervals []Interval
}

// Resolve produces the open intervals for every date in [from, to],
// inclusive, applying precedence: override (closed) > override (explicit
// times) > recurring patterns (additive) > weekly default. An available
// override without times forces the day open and defers to pattern/weekly
// hours. The result is ordered by date; a closed day has no intervals.
func Resolve(cal *Calendar, from, to Date) ([]ResolvedDay, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("date range %s..%s is inverted", from, to)
	}
	loc, err := cal.Location()
	if err != nil {
		return nil, err
	}
	idx, err := BuildOverrideIndex(cal.Overrides)
	if err != nil {
		return nil, err
	}

	var days []ResolvedDay
	for d := from; !d.After(to); d = d.AddDays(1) {
		blocks := dayBlocks(cal, idx, d)
		intervals := make([]Interval, 0, len(blocks))
		for _, b := range blocks {
			start, err := ToInstant(d, b.Start, loc)
			if err != nil {
				return nil, err
			}
			end, err := ToInstant(d, b.End, loc)
			if err != nil {
				return nil, err
			}
			intervals = append(intervals, Interval{Start: start.UTC(), End: end.UTC()})
		}
		days = append(days, ResolvedDay{Date: d, Intervals: MergeIntervals(intervals)})
	}
	return days, nil
}

// dayBlocks selects the wall-clock blocks for one date per the precedence
// rules. A nil result means the day is closed.
func dayBlocks(cal *Calendar, idx OverrideIndex, d Date) []TimeBlock {
	forcedOpen := false
	if ov, ok := idx[d]; ok {
		if !ov.Available {
			return nil
		}
		if ov.Start != nil && ov.End != nil {
			return []TimeBlock{{Start: *ov.Start, End: *ov.End}}
		}
		forcedOpen = true
	}

	// All matching active patterns contribute; overlap between them is merged
	// later rather than rejected. A matching pattern with no hours contributes
	// nothing, so the weekly default below still applies.
	var blocks []TimeBlock
	for _, p := range cal.Patterns {
		if !p.Active {
			continue
		}
		blocks = append(blocks, p.BlocksOn(d)...)
	}
	if len(blocks) > 0 {
		return blocks
	}

	day := cal.Weekly[d.Weekday()]
	if day.Enabled || forcedOpen {
		return day.Blocks
	}
	return nil
}
