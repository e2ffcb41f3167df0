package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transaction types. The set is closed; Types lists every member.
const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Categories. The set is closed; Categories lists every member.
const (
	Salary    Category = "salary"
	Groceries Category = "groceries"
	Bills     Category = "bills"
	Other     Category = "other"
)

// DateLayout is the ISO-8601 calendar date layout used on every boundary.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	Category string

	// ID is the opaque identity assigned to a transaction when it enters the ledger.
	ID string

	// Date is a calendar date at UTC midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID       ID              `json:"id,omitempty"`
		Date     Date            `json:"date"`
		Amount   Money           `json:"amount"`
		Type     TransactionType `json:"type"`
		Category Category        `json:"category"`
	}
)

var (
	ErrMissingField    = errors.New("required field missing")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidCategory = errors.New("invalid category")
)

var (
	types      = []TransactionType{Income, Expense}
	categories = []Category{Salary, Groceries, Bills, Other}
)

// ValidationError reports which field of a transaction was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Types returns every transaction type in display order.
func Types() []TransactionType {
	return append([]TransactionType(nil), types...)
}

// Categories returns every category in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (t TransactionType) Valid() bool {
	for _, v := range types {
		if t == v {
			return true
		}
	}
	return false
}

func (t TransactionType) String() string { return string(t) }

// ParseTransactionType accepts the wire form case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", invalid("type", ErrInvalidType)
	}
	return t, nil
}

func (t TransactionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, invalid("type", ErrInvalidType)
	}
	return []byte(t), nil
}

func (t *TransactionType) UnmarshalText(b []byte) error {
	v, err := ParseTransactionType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (c Category) Valid() bool {
	for _, v := range categories {
		if c == v {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// ParseCategory accepts the wire form case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", invalid("category", ErrInvalidCategory)
	}
	return c, nil
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, invalid("category", ErrInvalidCategory)
	}
	return []byte(c), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. The round trip through the layout
// rejects values time.Parse would otherwise normalise.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, invalid("date", ErrMissingField)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return Date{}, invalid("date", ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true for the zero date, used for open-ended ranges.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String returns the ISO-8601 form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON shadows the promoted time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return invalid("date", ErrInvalidDate)
	}
	return d.UnmarshalText([]byte(s))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return invalid("date", ErrMissingField)
	}
	return nil
}

// Validate checks the value fields; the ID is owned by the ledger and ignored.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	if !t.Category.Valid() {
		return invalid("category", ErrInvalidCategory)
	}
	return nil
}

// Equal compares value fields only.
func (t Transaction) Equal(o Transaction) bool {
	return t.Date.Equal(o.Date.Time) &&
		t.Amount == o.Amount &&
		t.Type == o.Type &&
		t.Category == o.Category
}

// ParseTransaction builds a transaction from raw form values. Empty type and
// category fall back to income/salary, the defaults of the entry form.
func ParseTransaction(date, amount, txType, category string) (Transaction, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Transaction{}, err
	}
	m, err := ParseMoney(amount)
	if err != nil {
		return Transaction{}, err
	}
	t := Income
	if strings.TrimSpace(txType) != "" {
		if t, err = ParseTransactionType(txType); err != nil {
			return Transaction{}, err
		}
	}
	c := Salary
	if strings.TrimSpace(category) != "" {
		if c, err = ParseCategory(category); err != nil {
			return Transaction{}, err
		}
	}
	return Transaction{Date: d, Amount: m, Type: t, Category: c}, nil
}
