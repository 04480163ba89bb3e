package services

import (
	"testing"

	"ledger/internal/core"
)

func TestClassifyChange(t *testing.T) {
	base := core.Subscription{
		ID:        "sub-1",
		Name:      "Music",
		Note:      "shared",
		Amount:    core.Money{Cents: 999},
		StartDate: core.NewDate(2024, 1, 1),
		Cadence:   core.Cadence{Interval: 1, Unit: core.Month},
		Active:    true,
		AccountID: "acc-1",
	}

	tests := []struct {
		name   string
		edit   func(s *core.Subscription)
		from   func(s *core.Subscription)
		want   Change
		signif bool
	}{
		{name: "rename is cosmetic", edit: func(s *core.Subscription) { s.Name = "Tunes"; s.Note = "" }, want: Cosmetic},
		{name: "account move is cosmetic", edit: func(s *core.Subscription) { s.AccountID = "acc-2" }, want: Cosmetic},
		{name: "deactivation is cosmetic", edit: func(s *core.Subscription) { s.Active = false }, want: Cosmetic},
		{name: "becoming free is cosmetic", edit: func(s *core.Subscription) { s.Free = true }, want: Cosmetic},
		{name: "amount", edit: func(s *core.Subscription) { s.Amount.Cents = 1099 }, want: AmountChanged, signif: true},
		{name: "anchor", edit: func(s *core.Subscription) { s.StartDate = core.NewDate(2024, 1, 2) }, want: DateChanged, signif: true},
		{name: "interval", edit: func(s *core.Subscription) { s.Cadence.Interval = 3 }, want: CadenceChanged, signif: true},
		{name: "unit", edit: func(s *core.Subscription) { s.Cadence.Unit = core.Year }, want: CadenceChanged, signif: true},
		{
			name: "activation", from: func(s *core.Subscription) { s.Active = false },
			edit: func(s *core.Subscription) { s.Active = true }, want: Activated, signif: true,
		},
		{
			name: "trial ended", from: func(s *core.Subscription) { s.Free = true },
			edit: func(s *core.Subscription) { s.Free = false }, want: TrialEnded, signif: true,
		},
		{
			name: "several at once",
			edit: func(s *core.Subscription) { s.Amount.Cents = 1; s.Cadence.Unit = core.Week },
			want: AmountChanged | CadenceChanged, signif: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := base
			if tt.from != nil {
				tt.from(&old)
			}
			next := old
			tt.edit(&next)

			got := ClassifyChange(old, next)
			if got != tt.want {
				t.Errorf("ClassifyChange() = %s, want %s", got, tt.want)
			}
			if got.Significant() != tt.signif {
				t.Errorf("Significant() = %v, want %v", got.Significant(), tt.signif)
			}
		})
	}
}

func TestChange_String(t *testing.T) {
	tests := []struct {
		c    Change
		want string
	}{
		{Cosmetic, "cosmetic"},
		{AmountChanged, "amount"},
		{DateChanged | TrialEnded, "date|trial_ended"},
		{AmountChanged | DateChanged | CadenceChanged | Activated | TrialEnded, "amount|date|cadence|activated|trial_ended"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.c.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChange_Has(t *testing.T) {
	c := AmountChanged | Activated
	if !c.Has(AmountChanged) || !c.Has(Activated) {
		t.Errorf("%s should have amount and activated", c)
	}
	if c.Has(DateChanged) || Cosmetic.Has(AmountChanged) {
		t.Errorf("unexpected flag reported")
	}
}
