package services

import (
	"strings"

	"ledger/internal/core"
)

// Change records which fields of a subscription edit affect its billing.
// The zero value is a cosmetic edit.
type Change uint8

const (
	AmountChanged Change = 1 << iota
	DateChanged
	CadenceChanged
	Activated
	TrialEnded
)

// Cosmetic is an edit that leaves generated entries untouched.
const Cosmetic Change = 0

var changeNames = []struct {
	flag Change
	name string
}{
	{AmountChanged, "amount"},
	{DateChanged, "date"},
	{CadenceChanged, "cadence"},
	{Activated, "activated"},
	{TrialEnded, "trial_ended"},
}

// ClassifyChange compares a subscription before and after an edit.
func ClassifyChange(old, next core.Subscription) Change {
	var c Change
	if old.Amount != next.Amount {
		c |= AmountChanged
	}
	if !old.StartDate.Equal(next.StartDate) {
		c |= DateChanged
	}
	if old.Cadence != next.Cadence {
		c |= CadenceChanged
	}
	if !old.Active && next.Active {
		c |= Activated
	}
	if old.Free && !next.Free {
		c |= TrialEnded
	}
	return c
}

// Significant reports whether the edit invalidates the generated entries.
func (c Change) Significant() bool {
	return c != Cosmetic
}

func (c Change) Has(flag Change) bool {
	return c&flag != 0
}

func (c Change) String() string {
	if c == Cosmetic {
		return "cosmetic"
	}
	var parts []string
	for _, n := range changeNames {
		if c.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
