package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var errInvalidShiftTime = errors.New("shift time must be HH:MM")

// ShiftTime is a wall-clock time of day.
type ShiftTime struct {
	Hour   int
	Minute int
}

// ParseShiftTime parses "HH:MM" with 00-23 hours and 00-59 minutes.
func ParseShiftTime(value string) (ShiftTime, error) {
	var st ShiftTime
	if len(value) != 5 || value[2] != ':' {
		return st, errInvalidShiftTime
	}
	for _, i := range []int{0, 1, 3, 4} {
		if value[i] < '0' || value[i] > '9' {
			return st, errInvalidShiftTime
		}
	}
	st.Hour, _ = strconv.Atoi(value[:2])
	st.Minute, _ = strconv.Atoi(value[3:])
	if st.Hour < 0 || st.Hour > 23 || st.Minute < 0 || st.Minute > 59 {
		return st, errInvalidShiftTime
	}
	return st, nil
}

func (s ShiftTime) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// On returns the instant this time of day occurs on the calendar date of day.
func (s ShiftTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.Hour, s.Minute, 0, 0, day.Location())
}

// ShiftWindow is the half-open interval [Start, End) in which login is allowed.
type ShiftWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window.
func (w ShiftWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// LoginWindowAt returns the window that applies to a login at now. A window
// opened yesterday still applies when it runs past midnight (night shifts).
// When now lies in neither, today's window is returned for display.
func (s ShiftTime) LoginWindowAt(now time.Time, length time.Duration) (ShiftWindow, bool) {
	today := ShiftWindow{Start: s.On(now)}
	today.End = today.Start.Add(length)
	if today.Contains(now) {
		return today, true
	}
	yesterday := ShiftWindow{Start: s.On(now.AddDate(0, 0, -1))}
	yesterday.End = yesterday.Start.Add(length)
	if yesterday.Contains(now) {
		return yesterday, true
	}
	return today, false
}
