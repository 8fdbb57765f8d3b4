package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) span of absolute time.
type Interval struct {
	Start time.Time `json:"start_utc"`
	End   time.Time `json:"end_utc"`
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// MergeIntervals sorts and merges overlapping or adjacent intervals into a
// minimal ordered sequence. Empty and inverted inputs are dropped.
func MergeIntervals(in []Interval) []Interval {
	var ivs []Interval
	for _, iv := range in {
		if iv.End.After(iv.Start) {
			ivs = append(ivs, iv)
		}
	}
	if len(ivs) == 0 {
		return nil
	}
	sort.Slice(ivs, func(i, j int) bool {
		if !ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].Start.Before(ivs[j].Start)
		}
		return ivs[i].End.Before(ivs[j].End)
	})
	merged := ivs[:1]
	for _, cur := range ivs[1:] {
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return merged
}
