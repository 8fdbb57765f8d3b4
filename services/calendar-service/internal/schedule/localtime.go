package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// LocalTime is a timezone-naive wall-clock time with minute precision,
// stored as minutes since midnight. The value 1440 ("24:00") is allowed
// so a block can run to the end of the day.
type LocalTime int

const endOfDay LocalTime = 24 * 60

func NewLocalTime(hour, minute int) LocalTime {
	return LocalTime(hour*60 + minute)
}

// ParseLocalTime parses "HH:MM" in 24-hour form. "24:00" is accepted as the
// end-of-day sentinel.
func ParseLocalTime(s string) (LocalTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	if h == 24 && m == 0 {
		return endOfDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return NewLocalTime(h, m), nil
}

func (t LocalTime) Hour() int   { return int(t) / 60 }
func (t LocalTime) Minute() int { return int(t) % 60 }

func (t LocalTime) Valid() bool { return t >= 0 && t <= endOfDay }

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("invalid time literal %s", data)
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
