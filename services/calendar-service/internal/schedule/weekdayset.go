package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// WeekdaySet is a set of weekdays a pattern applies to.
type WeekdaySet map[time.Weekday]bool

func Weekdays(days ...time.Weekday) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

func (s WeekdaySet) Has(d time.Weekday) bool { return s[d] }

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

// MarshalJSON encodes the set as a sorted array of lowercase day names.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	var days []int
	for d, on := range s {
		if on {
			days = append(days, int(d))
		}
	}
	sort.Ints(days)
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, strings.ToLower(time.Weekday(d).String()))
	}
	return json.Marshal(names)
}

func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set := make(WeekdaySet, len(names))
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return err
		}
		set[d] = true
	}
	*s = set
	return nil
}
