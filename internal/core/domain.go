package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Food          Category = "Food"
	Clothing      Category = "Clothing"
	Home          Category = "Home"
	Travel        Category = "Travel"
	Utilities     Category = "Utilities"
	Entertainment Category = "Entertainment"
	Health        Category = "Health"
	Other         Category = "Other"
)

const (
	dateLayout = "2006-01-02"

	maxItemLength = 200
)

type (
	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense mirrors an expense record owned by the remote API.
	Expense struct {
		ID           int64
		PurchaseItem string
		Category     Category
		Amount       Money
		Date         Date
	}

	// User is the identity returned by /me and /login.
	User struct {
		ID       int64
		Username string
	}
)

var (
	ErrEmptyItem       = errors.New("purchase item is required")
	ErrItemTooLong     = errors.New("purchase item too long (max 200 characters)")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidYear     = errors.New("invalid year")
)

var categories = []Category{Food, Clothing, Home, Travel, Utilities, Entertainment, Health, Other}

// Categories returns the categories accepted by the expense service, in form order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory matches s against the known categories, ignoring case and surrounding space.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (c Category) String() string {
	return string(c)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD and anything that starts with it
// (RFC3339 timestamps, "2025-06-01 00:00:00").
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayout) {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date the way <input type="date"> expects it.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Display is the human-readable form shown on expense cards.
func (d Date) Display() string {
	if d.IsZero() {
		return "No date"
	}
	return d.Format("1/2/2006")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	item := strings.TrimSpace(e.PurchaseItem)
	if item == "" {
		return ErrEmptyItem
	}
	if utf8.RuneCountInString(item) > maxItemLength {
		return ErrItemTooLong
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return e.Date.Validate()
}
