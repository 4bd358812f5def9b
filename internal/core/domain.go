package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

const (
	Weekly    BudgetPeriod = "weekly"
	Monthly   BudgetPeriod = "monthly"
	Quarterly BudgetPeriod = "quarterly"
	Yearly    BudgetPeriod = "yearly"
)

const (
	EveryDay   Frequency = "daily"
	EveryWeek  Frequency = "weekly"
	EveryMonth Frequency = "monthly"
	EveryYear  Frequency = "yearly"
)

// OtherCategory is the sentinel bucket for records without a category.
const OtherCategory = "Other"

const (
	maxNoteLength         = 500
	maxCategoryNameLength = 50
)

type (
	// Kind tells expenses from income. Amounts never carry a sign.
	Kind string

	BudgetPeriod string

	Frequency string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID        string
		UserID    string
		Kind      Kind
		Amount    Money
		Currency  Currency
		Category  string // category for expenses, source for income
		Note      string
		Date      Date
		CreatedAt time.Time
	}

	Budget struct {
		ID        string
		UserID    string
		Category  string
		Limit     Money
		Currency  Currency
		Period    BudgetPeriod
		Active    bool
		CreatedAt time.Time
	}

	Category struct {
		ID        string
		UserID    string
		Kind      Kind
		Name      string
		Icon      string
		Color     string
		Custom    bool
		CreatedAt time.Time
	}

	Settings struct {
		UserID        string
		Currency      Currency
		Email         string
		WeeklySummary bool
		UpdatedAt     time.Time
	}

	RecurringTransaction struct {
		ID        string
		UserID    string
		Kind      Kind
		Amount    Money
		Currency  Currency
		Category  string
		Note      string
		Every     Frequency
		StartDate Date
		EndDate   Date // zero means open-ended
		LastRunAt time.Time
		Active    bool
		CreatedAt time.Time
	}

	// InsightSnapshot is a persisted insight result. Revision is the user's
	// ledger revision the payload was computed from.
	InsightSnapshot struct {
		UserID    string
		Scope     string
		Revision  int64
		Payload   []byte
		CreatedAt time.Time
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidPeriod   = errors.New("invalid budget period")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyCategory   = errors.New("empty category")
	ErrNoteTooLong     = errors.New("note too long (max 500 characters)")
	ErrEmptyUser       = errors.New("empty user id")
	ErrUnauthenticated = errors.New("unauthenticated")
)

func (k Kind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
	}
}

func (p BudgetPeriod) Validate() error {
	switch p {
	case Weekly, Monthly, Quarterly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
	}
}

func (f Frequency) Validate() error {
	switch f {
	case EveryDay, EveryWeek, EveryMonth, EveryYear:
		return nil
	default:
		return fmt.Errorf("invalid frequency: %q", string(f))
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date, read in the instant's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// DaysUntil counts whole calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Currency.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len([]rune(t.Note)) > maxNoteLength {
		return ErrNoteTooLong
	}
	return t.Date.Validate()
}

// CategoryOrOther returns the category, falling back to OtherCategory when blank.
func (t Transaction) CategoryOrOther() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	return OtherCategory
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Limit.Validate(); err != nil {
		return err
	}
	if err := b.Currency.Validate(); err != nil {
		return err
	}
	return b.Period.Validate()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyUser
	}
	if err := c.Kind.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategory
	}
	if len([]rune(name)) > maxCategoryNameLength {
		return errors.New("category name too long (max 50 characters)")
	}
	return nil
}

// WithDefaults fills icon and color for custom categories.
func (c Category) WithDefaults() Category {
	c.Name = strings.TrimSpace(c.Name)
	if strings.TrimSpace(c.Icon) == "" {
		c.Icon = "📦"
	}
	if strings.TrimSpace(c.Color) == "" {
		c.Color = "Gray"
	}
	return c
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if err := s.Currency.Validate(); err != nil {
		return err
	}
	if s.Email != "" && !strings.Contains(s.Email, "@") {
		return fmt.Errorf("invalid email address: %q", s.Email)
	}
	if s.WeeklySummary && s.Email == "" {
		return errors.New("weekly summary requires an email address")
	}
	return nil
}

// DefaultSettings returns the settings used before a user saves any.
func DefaultSettings(userID string) Settings {
	return Settings{UserID: userID, Currency: USD}
}

func (r RecurringTransaction) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUser
	}
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if err := r.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate.Time) {
		return errors.New("end date must be after start date")
	}
	if err := r.Every.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Currency.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if len([]rune(r.Note)) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// Instantiate builds the transaction a recurring template produces on the given date.
func (r RecurringTransaction) Instantiate(on Date) Transaction {
	return Transaction{
		UserID:   r.UserID,
		Kind:     r.Kind,
		Amount:   r.Amount,
		Currency: r.Currency,
		Category: r.Category,
		Note:     r.Note,
		Date:     on,
	}
}

// Expired reports whether the template's end date lies before the given day.
func (r RecurringTransaction) Expired(on Date) bool {
	return !r.EndDate.IsZero() && on.After(r.EndDate.Time)
}
