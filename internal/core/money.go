// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point cents. Parsing goes through decimal arithmetic so
// that "0.1" is exactly ten cents, and totals are plain integer sums.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative magnitude for transactions; sums such as a
// balance may be negative.
type Money struct {
	Cents int64
}

// MaxAmountCents caps a single amount at ten trillion currency units, far
// enough below MaxInt64 that totals over a ledger cannot wrap.
const MaxAmountCents int64 = 1_000_000_000_000_000

// Exponent bounds for parsed input, checked before any rescaling: the cost
// of rescaling grows with the exponent, and no amount under the cap needs
// more than these.
const (
	maxExponent = 18
	minExponent = -20
)

var maxCents = decimal.NewFromInt(MaxAmountCents)

// ParseMoney converts a decimal string to cents with half-up rounding.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Zero is allowed; negative, non-finite and values above MaxAmountCents
// are not.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,345") -> 1235 (rounds up)
//	ParseMoney("1e3")    -> 100000
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, invalid("amount", ErrMissingField)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, invalid("amount", ErrInvalidAmount)
	}
	return fromDecimal(d)
}

// NewMoneyFromFloat converts a float amount, rejecting NaN and infinities.
func NewMoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, invalid("amount", ErrInvalidAmount)
	}
	return fromDecimal(decimal.NewFromFloat(f))
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent {
		return Money{}, invalid("amount", ErrInvalidAmount)
	}
	if d.IsNegative() {
		return Money{}, invalid("amount", ErrInvalidAmount)
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return Money{}, invalid("amount", ErrInvalidAmount)
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxAmountCents {
		return invalid("amount", ErrInvalidAmount)
	}
	return nil
}

// Add saturates at the int64 bounds instead of wrapping.
func (m Money) Add(o Money) Money {
	sum := m.Cents + o.Cents
	switch {
	case o.Cents > 0 && sum < m.Cents:
		sum = math.MaxInt64
	case o.Cents < 0 && sum > m.Cents:
		sum = math.MinInt64
	}
	return Money{Cents: sum}
}

func (m Money) Sub(o Money) Money {
	if o.Cents == math.MinInt64 {
		return m.Add(Money{Cents: math.MaxInt64}).Add(Money{Cents: 1})
	}
	return m.Add(Money{Cents: -o.Cents})
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the shortest decimal form: 1000, 12.5, 0.05.
func (m Money) String() string {
	return m.Decimal().String()
}

// MarshalJSON emits a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. A sign is kept so
// balances decode; Validate rejects negative transaction amounts.
func (m *Money) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return invalid("amount", ErrMissingField)
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return invalid("amount", ErrInvalidAmount)
		}
		raw = s
	}
	neg := strings.HasPrefix(raw, "-")
	v, err := ParseMoney(strings.TrimPrefix(raw, "-"))
	if err != nil {
		return err
	}
	if neg {
		v.Cents = -v.Cents
	}
	*m = v
	return nil
}
