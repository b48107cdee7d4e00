package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Stay is a half-open range of nights: From is the check-in day and To the
// check-out day, which is not occupied.
type Stay struct {
	From time.Time
	To   time.Time
}

// AllDays overlaps every stay.
var AllDays = Stay{From: time.Time{}, To: time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)}

// NewStay truncates both bounds to UTC calendar days.
func NewStay(from, to time.Time) Stay {
	return Stay{From: Day(from), To: Day(to)}
}

// ParseStay parses two YYYY-MM-DD strings. It does not check the order of
// the bounds; see the booking service validation for that.
func ParseStay(from, to string) (Stay, error) {
	f, err := ParseDay(from)
	if err != nil {
		return Stay{}, err
	}
	t, err := ParseDay(to)
	if err != nil {
		return Stay{}, err
	}
	return Stay{From: f, To: t}, nil
}

func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// Day returns t's calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Nights is To - From in days; negative for reversed ranges.
func (s Stay) Nights() int {
	return int(Day(s.To).Sub(Day(s.From)) / day)
}

func (s Stay) String() string {
	return fmt.Sprintf("[%s, %s)", s.From.Format(DateLayout), s.To.Format(DateLayout))
}
