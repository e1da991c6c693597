package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a local wall-clock time stored as minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("time of day %q: bad hour", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 || len(m) != 2 {
		return 0, fmt.Errorf("time of day %q: bad minute", s)
	}
	return TimeOfDay(hh*60 + mm), nil
}

// MustTimeOfDay is ParseTimeOfDay for compile-time constants.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// At returns the time-of-day of t in its own location, truncated to the
// minute: 07:30:59 is still 07:30.
func At(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Window holds the in/out boundaries of one grade bracket.
type Window struct {
	MorningIn    TimeOfDay `json:"morning_in"`
	MorningOut   TimeOfDay `json:"morning_out"`
	AfternoonIn  TimeOfDay `json:"afternoon_in"`
	AfternoonOut TimeOfDay `json:"afternoon_out"`
}

// NewWindow builds a window from a bracket's in/out times and the school lunch
// break. Lunch bounds never extend past the dismissal time.
func NewWindow(in, out, lunchStart, lunchEnd TimeOfDay) Window {
	if lunchStart > out {
		lunchStart = out
	}
	if lunchEnd > out {
		lunchEnd = out
	}
	if lunchEnd < lunchStart {
		lunchEnd = lunchStart
	}
	return Window{MorningIn: in, MorningOut: lunchStart, AfternoonIn: lunchEnd, AfternoonOut: out}
}

// InLunch reports whether t falls in the break between the two sessions.
func (w Window) InLunch(t TimeOfDay) bool {
	return t >= w.MorningOut && t < w.AfternoonIn
}
