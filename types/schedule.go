package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const asapMarker = "ASAP"

var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule is either "as soon as possible" or a point in time (unix seconds).
type Schedule struct {
	ASAP bool
	Unix int64
}

// ASAP returns the "as soon as possible" schedule.
func ASAP() Schedule {
	return Schedule{ASAP: true}
}

func At(t time.Time) Schedule {
	return Schedule{Unix: t.Unix()}
}

// Time returns the scheduled point in time, the zero time for ASAP.
func (s Schedule) Time() time.Time {
	if s.ASAP {
		return time.Time{}
	}
	return time.Unix(s.Unix, 0).UTC()
}

func (s Schedule) String() string {
	if s.ASAP {
		return asapMarker
	}
	return strconv.FormatInt(s.Unix, 10)
}

// ParseSchedule accepts "ASAP" (any case) or anything containing a unix timestamp, f.e. a chat timestamp
// like "<t:1700000000:f>". All non-digits are stripped before parsing.
func ParseSchedule(s string) (Schedule, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, asapMarker) {
		return ASAP(), nil
	}
	// "<t:1700000000:f>" carries a format letter after the digits, cut it off first
	if i := strings.LastIndex(s, ":"); strings.HasPrefix(s, "<t:") && i > len("<t:") {
		s = s[:i]
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return Schedule{}, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
	}
	ts, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: %s", ErrInvalidSchedule, err)
	}
	return Schedule{Unix: ts}, nil
}

// MarshalJSON writes "ASAP" or the unix timestamp as a number.
func (s Schedule) MarshalJSON() ([]byte, error) {
	if s.ASAP {
		return json.Marshal(asapMarker)
	}
	return json.Marshal(s.Unix)
}

func (s *Schedule) UnmarshalJSON(b []byte) error {
	var ts int64
	if err := json.Unmarshal(b, &ts); err == nil {
		*s = Schedule{Unix: ts}
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSchedule, string(b))
	}
	parsed, err := ParseSchedule(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
