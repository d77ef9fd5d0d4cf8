// Package timeframe parses bar period specifications such as "m5", "t100" or "W".
package timeframe

import (
	"fmt"
	"strconv"
	"time"

	"github.com/muhammadchandra19/tickbar/pkg/errors"
)

// Unit is the base period of a TimeFrame.
type Unit string

const (
	// Tick counts ticks instead of time.
	Tick Unit = "t"
	// Second is a one second period.
	Second Unit = "s"
	// Minute is a one minute period.
	Minute Unit = "m"
	// Hour is a one hour period.
	Hour Unit = "h"
	// Day is a calendar day starting at market open.
	Day Unit = "D"
	// Week is a calendar week starting on the weekly open day.
	Week Unit = "W"
	// Month is a calendar month.
	Month Unit = "M"
)

var unitNames = map[Unit]string{
	Tick:   "tick",
	Second: "second",
	Minute: "minute",
	Hour:   "hour",
	Day:    "day",
	Week:   "week",
	Month:  "month",
}

// String returns the long name of the unit.
func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return "unknown"
}

// TimeFrame is a (unit, multiplier) pair describing a bar period.
type TimeFrame struct {
	Unit       Unit
	Multiplier int
}

// Parse parses spec of the form <unit><multiplier>. The multiplier may be
// omitted for tick, day, week and month units, and then defaults to 1.
func Parse(spec string) (TimeFrame, error) {
	if spec == "" {
		return TimeFrame{}, invalid(spec, "timeframe is empty")
	}

	unit := Unit(spec[:1])
	if _, ok := unitNames[unit]; !ok {
		return TimeFrame{}, invalid(spec, fmt.Sprintf("unknown timeframe unit %q", spec[:1]))
	}

	rest := spec[1:]
	if rest == "" {
		if unit.allowsShorthand() {
			return TimeFrame{Unit: unit, Multiplier: 1}, nil
		}
		return TimeFrame{}, invalid(spec, fmt.Sprintf("%s timeframe requires a multiplier", unit))
	}

	for _, r := range rest {
		if r < '0' || r > '9' {
			return TimeFrame{}, invalid(spec, fmt.Sprintf("multiplier %q is not numeric", rest))
		}
	}

	multiplier, err := strconv.Atoi(rest)
	if err != nil {
		return TimeFrame{}, invalid(spec, fmt.Sprintf("multiplier %q is out of range", rest))
	}
	if multiplier <= 0 {
		return TimeFrame{}, invalid(spec, "multiplier must be positive")
	}

	return TimeFrame{Unit: unit, Multiplier: multiplier}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(spec string) TimeFrame {
	tf, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return tf
}

func (u Unit) allowsShorthand() bool {
	switch u {
	case Tick, Day, Week, Month:
		return true
	default:
		return false
	}
}

func invalid(spec, message string) error {
	err := errors.NewConfigError(errors.ConfigInvalidTimeframe, "timeframe", message)
	err.Object = spec
	return err
}

// String returns the canonical spec, always including the multiplier.
func (tf TimeFrame) String() string {
	return fmt.Sprintf("%s%d", tf.Unit, tf.Multiplier)
}

// IsTick reports whether bars are delimited by tick count.
func (tf TimeFrame) IsTick() bool {
	return tf.Unit == Tick
}

// IsInterval reports whether the unit is a fixed sub-day duration.
func (tf TimeFrame) IsInterval() bool {
	switch tf.Unit {
	case Second, Minute, Hour:
		return true
	default:
		return false
	}
}

// IsCalendar reports whether the unit follows calendar boundaries.
func (tf TimeFrame) IsCalendar() bool {
	switch tf.Unit {
	case Day, Week, Month:
		return true
	default:
		return false
	}
}

// Period returns the duration of one unit for interval timeframes and zero otherwise.
func (tf TimeFrame) Period() time.Duration {
	switch tf.Unit {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	default:
		return 0
	}
}
