package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time with minute precision, independent of any
// date or timezone. Schedule slots are stored as TimeOfDay pairs and only
// become instants when combined with a calendar date (see At).
type TimeOfDay struct {
	Hour   int `bson:"hour" json:"hour"`
	Minute int `bson:"minute" json:"minute"`
}

var timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s*(AM|PM))?$`)

// ParseTimeOfDay accepts "18:00", "9:05" and the 12-hour forms
// "6:00 PM" / "6:00PM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	ampm := m[3]

	if minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minutes in %q", s)
	}

	if ampm == "" {
		if hour < 0 || hour > 23 {
			return TimeOfDay{}, fmt.Errorf("invalid hours in %q", s)
		}
		return TimeOfDay{Hour: hour, Minute: minute}, nil
	}

	if hour < 1 || hour > 12 {
		return TimeOfDay{}, fmt.Errorf("invalid hours in %q", s)
	}
	if ampm == "AM" && hour == 12 {
		hour = 0
	}
	if ampm == "PM" && hour != 12 {
		hour += 12
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// Before reports whether t is strictly earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	if t.Hour != other.Hour {
		return t.Hour < other.Hour
	}
	return t.Minute < other.Minute
}

// Minutes returns the time of day as minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// At combines a calendar date with a wall-clock time in the given IANA
// timezone and returns the absolute instant. The timezone's offset on that
// specific date is used, so instants stay correct across DST transitions.
// The date argument contributes only its year/month/day as observed in loc.
func At(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	year, month, day := date.In(loc).Date()
	return time.Date(year, month, day, tod.Hour, tod.Minute, 0, 0, loc)
}

// DateOnly truncates an instant to local midnight of its calendar day.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
