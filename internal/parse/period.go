package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	clockRe  = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	periodRe = regexp.MustCompile(`^\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s*$`)
)

// Clock is a wall-clock time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ClockOf returns the wall-clock time of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(raw string) (Clock, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Clock{}, fmt.Errorf("invalid clock time %q, expected HH:MM", raw)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return Clock{}, fmt.Errorf("clock time %q out of range", raw)
	}
	return Clock{Hour: h, Minute: min}, nil
}

// Period is a same-day clock window, both ends inclusive.
type Period struct {
	Start Clock
	End   Clock
}

// ParsePeriod parses a "HH:MM-HH:MM" window. Windows crossing midnight are rejected.
func ParsePeriod(raw string) (Period, error) {
	m := periodRe.FindStringSubmatch(raw)
	if m == nil {
		return Period{}, fmt.Errorf("invalid period %q, expected HH:MM-HH:MM", raw)
	}
	start, err := ParseClock(m[1])
	if err != nil {
		return Period{}, err
	}
	end, err := ParseClock(m[2])
	if err != nil {
		return Period{}, err
	}
	if start.Minutes() > end.Minutes() {
		return Period{}, fmt.Errorf("period %q ends before it starts", raw)
	}
	return Period{Start: start, End: end}, nil
}

// Contains reports whether the clock time of t falls within the window.
func (p Period) Contains(t time.Time) bool {
	m := ClockOf(t).Minutes()
	return m >= p.Start.Minutes() && m <= p.End.Minutes()
}

// EndedBy reports whether the clock time of t is past the end of the window.
func (p Period) EndedBy(t time.Time) bool {
	return ClockOf(t).Minutes() > p.End.Minutes()
}

func (p Period) String() string {
	return p.Start.String() + "-" + p.End.String()
}
