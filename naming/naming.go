// Package naming derives channel names, display dates and channel ordering from a roster's schedule.
package naming

import (
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-roster/types"
)

// AsapWeight is the sort weight of rosters without a date, lower than any MMDDYYYY weight.
const AsapWeight = 100

// Suffix returns the english ordinal suffix of a day of the month.
func Suffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

// ChannelName returns "<title>-ASAP" or "<title>-<weekday>-<day><suffix>", f.e. "vAS-Tue-14th", with weekday and
// day taken in the given zone.
func ChannelName(s types.Schedule, title string, loc *time.Location) string {
	if s.ASAP {
		return title + "-ASAP"
	}
	t := s.Time().In(loc)
	return fmt.Sprintf("%s-%s-%d%s", title, t.Format("Mon"), t.Day(), Suffix(t.Day()))
}

// SortWeight orders channels: AsapWeight for ASAP rosters, MMDDYYYY read as an integer otherwise.
func SortWeight(s types.Schedule, loc *time.Location) int {
	if s.ASAP {
		return AsapWeight
	}
	t := s.Time().In(loc)
	return int(t.Month())*1000000 + t.Day()*10000 + t.Year()
}

// FormatDate renders a schedule the way chat clients display local timestamps.
func FormatDate(s types.Schedule) string {
	if s.ASAP {
		return "ASAP"
	}
	return fmt.Sprintf("<t:%d:f>", s.Unix)
}

// LoadLocation is time.LoadLocation with UTC for the empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
