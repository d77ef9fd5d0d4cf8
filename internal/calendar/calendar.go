// Package calendar holds the session and calendar arithmetic used to align bars.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// Midnight is the default market open.
var Midnight = Clock{}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, invalidClock(s)
	}

	values := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || len(part) != 2 || v < 0 || v > limits[i] {
			return Clock{}, invalidClock(s)
		}
		values[i] = v
	}

	return Clock{Hour: values[0], Minute: values[1], Second: values[2]}, nil
}

func invalidClock(s string) error {
	return errors.NewConfigError(errors.ConfigInvalidOption, "market_open", fmt.Sprintf("invalid wall-clock time %q, expected HH:MM[:SS]", s))
}

// String formats the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// On returns the instant at clock c on t's calendar date, in t's location.
func (c Clock) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, t.Location())
}

// LastOpen returns the latest market open at or before t.
func LastOpen(t time.Time, open Clock) time.Time {
	o := open.On(t)
	if o.After(t) {
		y, m, d := t.Date()
		o = open.On(time.Date(y, m, d-1, 12, 0, 0, 0, t.Location()))
	}
	return o
}

// NextOpen returns the earliest market open strictly after t.
func NextOpen(t time.Time, open Clock) time.Time {
	o := open.On(t)
	if !o.After(t) {
		y, m, d := t.Date()
		o = open.On(time.Date(y, m, d+1, 12, 0, 0, 0, t.Location()))
	}
	return o
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full or three letter English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for full, wd := range weekdays {
		if key == full || (len(key) == 3 && strings.HasPrefix(full, key)) {
			return wd, nil
		}
	}
	return time.Monday, errors.NewConfigError(errors.ConfigInvalidOption, "weekly_open", fmt.Sprintf("invalid weekday %q", name))
}

// StartOfWeek returns midnight of the first day of t's week, where weeks begin on start.
func StartOfWeek(t time.Time, start time.Weekday) time.Time {
	cfg := &now.Config{WeekStartDay: start, TimeLocation: t.Location()}
	return cfg.With(t).BeginningOfWeek()
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return now.With(t).BeginningOfMonth()
}

// DaysInMonth returns the number of days of the given month.
func DaysInMonth(year int, month time.Month, loc *time.Location) int {
	return now.With(time.Date(year, month, 1, 0, 0, 0, 0, loc)).EndOfMonth().Day()
}

// AddMonths advances t by n calendar months. Month overflow carries into the
// year and the day of month is clamped to the last day of the destination
// month, so Jan 31 + 1 month is Feb 28 or Feb 29.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	year := y + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	if last := DaysInMonth(year, month, t.Location()); d > last {
		d = last
	}
	return time.Date(year, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
