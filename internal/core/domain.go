package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

const (
	Day   Unit = "day"
	Week  Unit = "week"
	Month Unit = "month"
	Year  Unit = "year"
)

// SubscriptionsCategory is the shared category every generated charge is filed under.
const SubscriptionsCategory = "Subscriptions"

const maxNameLength = 200

type (
	TransactionType string
	CategoryType    string
	Unit            string

	Date struct {
		time.Time
	}

	Cadence struct {
		Interval int  `json:"interval"`
		Unit     Unit `json:"unit"`
	}

	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Category struct {
		ID    string       `json:"id"`
		Name  string       `json:"name"`
		Type  CategoryType `json:"type"`
		Color string       `json:"color,omitempty"`
		Icon  string       `json:"icon,omitempty"`
	}

	Transaction struct {
		ID                   string          `json:"id"`
		Title                string          `json:"title"`
		Amount               Money           `json:"amount"`
		Date                 Date            `json:"date"`
		Type                 TransactionType `json:"type"`
		Currency             string          `json:"currency"`
		CategoryID           string          `json:"category_id,omitempty"`
		AccountID            string          `json:"account_id"`
		DestinationAccountID string          `json:"destination_account_id,omitempty"`
		SubscriptionID       string          `json:"subscription_id,omitempty"` // set only on generated entries
	}

	Subscription struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Note      string  `json:"note,omitempty"`
		Amount    Money   `json:"amount"`
		Currency  string  `json:"currency"`
		StartDate Date    `json:"start_date"` // anchor of every billing cycle
		Cadence   Cadence `json:"cadence"`
		Active    bool    `json:"active"`
		Free      bool    `json:"free"`
		TrialEnd  Date    `json:"trial_end"` // zero when unset
		AccountID string  `json:"account_id"`

		// GeneratedThrough is the cutoff of the last generation run; zero when nothing
		// has been generated since the last wipe.
		GeneratedThrough Date      `json:"generated_through"`
		CreatedAt        time.Time `json:"created_at"`
	}

	Budget struct {
		ID        string    `json:"id"`
		Limit     Money     `json:"limit"`
		Category  *Category `json:"category,omitempty"`   // nil when not category scoped
		AccountID string    `json:"account_id,omitempty"` // empty when not account scoped
		CreatedAt time.Time `json:"created_at"`
	}

	// Waiver is the window during which billing occurrences produce no charge.
	Waiver struct {
		Until      Date
		Indefinite bool
	}
)

var (
	ErrInvalidDay             = errors.New("invalid day")
	ErrInvalidMonth           = errors.New("invalid month")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidCadence         = errors.New("invalid cadence")
	ErrInvalidBudgetScope     = errors.New("budget needs a category or an account")
	ErrEmptyName              = errors.New("empty name")
	ErrNameTooLong            = fmt.Errorf("name too long (max %d characters)", maxNameLength)
	ErrMissingAccount         = errors.New("missing account")
	ErrMissingDestination     = errors.New("transfer needs a destination account")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidCategoryType    = errors.New("invalid category type")
	ErrReservedCategory       = fmt.Errorf("category %q is reserved for expenses", SubscriptionsCategory)
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (unset optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// AddDays moves the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonthsClamped moves the date by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonthsClamped(n int) Date {
	y, m, day := d.Time.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (u Unit) IsValid() bool {
	switch u {
	case Day, Week, Month, Year:
		return true
	default:
		return false
	}
}

// MaxCadenceInterval bounds Cadence.Interval so occurrence arithmetic cannot overflow.
const MaxCadenceInterval = 1000

func (c Cadence) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidCadence, c.Interval)
	}
	if c.Interval > MaxCadenceInterval {
		return fmt.Errorf("%w: interval must be at most %d, got %d", ErrInvalidCadence, MaxCadenceInterval, c.Interval)
	}
	if !c.Unit.IsValid() {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidCadence, c.Unit)
	}
	return nil
}

func (c Cadence) String() string {
	return fmt.Sprintf("every %d %s", c.Interval, c.Unit)
}

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	default:
		return false
	}
}

func (t CategoryType) IsValid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (a Account) Validate() error {
	return validateName(a.Name)
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Type.IsValid() {
		return ErrInvalidCategoryType
	}
	if c.Name == SubscriptionsCategory && c.Type != CategoryExpense {
		return ErrReservedCategory
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return ErrInvalidTransactionType
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	if t.Type == Transfer && strings.TrimSpace(t.DestinationAccountID) == "" {
		return ErrMissingDestination
	}
	if t.Type != Transfer && t.DestinationAccountID != "" {
		return errors.New("destination account is only allowed on transfers")
	}
	return nil
}

// Validate checks a subscription at the boundary. The billing generator itself
// tolerates a non-positive interval and simply produces nothing.
func (s Subscription) Validate() error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if err := s.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !s.TrialEnd.IsEmpty() {
		if err := s.TrialEnd.Validate(); err != nil {
			return fmt.Errorf("invalid trial end: %w", err)
		}
	}
	if err := s.Cadence.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.AccountID) == "" {
		return ErrMissingAccount
	}
	return nil
}

// Waiver resolves the trial end date and the free flag into one window. A set
// trial end always wins; a free subscription without one is waived indefinitely.
func (s Subscription) Waiver() Waiver {
	if !s.TrialEnd.IsEmpty() {
		return Waiver{Until: s.TrialEnd}
	}
	return Waiver{Indefinite: s.Free}
}

// Covers reports whether an occurrence on d is waived.
func (w Waiver) Covers(d Date) bool {
	if w.Indefinite {
		return true
	}
	return !w.Until.IsEmpty() && !d.After(w.Until)
}

func (b Budget) Validate() error {
	if b.Category == nil && strings.TrimSpace(b.AccountID) == "" {
		return ErrInvalidBudgetScope
	}
	if b.Limit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsIncome reports whether the budget tracks an income goal rather than a spending limit.
func (b Budget) IsIncome() bool {
	return b.Category != nil && b.Category.Type == CategoryIncome
}
