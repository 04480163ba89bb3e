// Package billing expands a subscription's cadence into dated charges.
//
// Every occurrence is computed from the anchor date directly, so month-end
// clamping on one cycle never shifts the cycles after it.
package billing

import (
	"fmt"

	"ledger/internal/core"
)

// Stepper computes the k-th occurrence of a cadence unit counted from an anchor.
type Stepper interface {
	Nth(anchor core.Date, k, interval int) core.Date
}

// DayStepper steps by whole days.
type DayStepper struct{}

func (DayStepper) Nth(anchor core.Date, k, interval int) core.Date {
	return anchor.AddDays(k * interval)
}

// WeekStepper steps by seven-day weeks.
type WeekStepper struct{}

func (WeekStepper) Nth(anchor core.Date, k, interval int) core.Date {
	return anchor.AddDays(7 * k * interval)
}

// MonthStepper steps by calendar months, clamping to the last day of shorter months.
type MonthStepper struct{}

func (MonthStepper) Nth(anchor core.Date, k, interval int) core.Date {
	return anchor.AddMonthsClamped(k * interval)
}

// YearStepper steps by calendar years; Feb 29 anchors fall on Feb 28 in common years.
type YearStepper struct{}

func (YearStepper) Nth(anchor core.Date, k, interval int) core.Date {
	return anchor.AddMonthsClamped(12 * k * interval)
}

var steppers = map[core.Unit]Stepper{
	core.Day:   DayStepper{},
	core.Week:  WeekStepper{},
	core.Month: MonthStepper{},
	core.Year:  YearStepper{},
}

// GetStepper returns the stepper registered for unit.
func GetStepper(unit core.Unit) (Stepper, error) {
	s, ok := steppers[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unknown unit %q", core.ErrInvalidCadence, unit)
	}
	return s, nil
}

// Occurrences lists every billing date from anchor up to and including cutoff.
// An interval outside 1..core.MaxCadenceInterval, an unknown unit or an anchor
// after the cutoff yield no dates.
func Occurrences(anchor core.Date, c core.Cadence, cutoff core.Date) []core.Date {
	if c.Interval <= 0 || c.Interval > core.MaxCadenceInterval || anchor.IsEmpty() || anchor.After(cutoff) {
		return nil
	}
	stepper, err := GetStepper(c.Unit)
	if err != nil {
		return nil
	}

	var out []core.Date
	for k := 0; ; k++ {
		d := stepper.Nth(anchor, k, c.Interval)
		if d.After(cutoff) {
			break
		}
		// Dates must strictly advance; anything else means the step arithmetic wrapped.
		if k > 0 && !d.After(out[len(out)-1]) {
			break
		}
		out = append(out, d)
	}
	return out
}
