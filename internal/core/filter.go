package core

import "strings"

// AllValue is the wire form selecting every type or every category.
const AllValue = "all"

// Criteria narrows a sequence of transactions. The zero value matches
// everything: empty Type and Category mean "all", empty dates are open.
type Criteria struct {
	Type      TransactionType
	Category  Category
	StartDate Date
	EndDate   Date
}

// ParseCriteria builds criteria from the raw filter form. "all" and empty
// strings select everything.
func ParseCriteria(txType, category, start, end string) (Criteria, error) {
	var c Criteria
	var err error
	if v := strings.TrimSpace(txType); v != "" && !strings.EqualFold(v, AllValue) {
		if c.Type, err = ParseTransactionType(v); err != nil {
			return Criteria{}, err
		}
	}
	if v := strings.TrimSpace(category); v != "" && !strings.EqualFold(v, AllValue) {
		if c.Category, err = ParseCategory(v); err != nil {
			return Criteria{}, err
		}
	}
	if strings.TrimSpace(start) != "" {
		if c.StartDate, err = ParseDate(start); err != nil {
			return Criteria{}, err
		}
	}
	if strings.TrimSpace(end) != "" {
		if c.EndDate, err = ParseDate(end); err != nil {
			return Criteria{}, err
		}
	}
	return c, nil
}

// IsEmpty reports whether the criteria match every transaction.
func (c Criteria) IsEmpty() bool {
	return c == Criteria{}
}

// Key is a stable string form usable as a cache key.
func (c Criteria) Key() string {
	t, cat := string(c.Type), string(c.Category)
	if t == "" {
		t = AllValue
	}
	if cat == "" {
		cat = AllValue
	}
	return t + "|" + cat + "|" + c.StartDate.String() + "|" + c.EndDate.String()
}

// Matches applies the four clauses. Date bounds are inclusive; comparing the
// ISO-8601 text forms orders the same way as comparing the dates.
func (c Criteria) Matches(t Transaction) bool {
	if c.Type != "" && t.Type != c.Type {
		return false
	}
	if c.Category != "" && t.Category != c.Category {
		return false
	}
	date := t.Date.String()
	if !c.StartDate.IsEmpty() && date < c.StartDate.String() {
		return false
	}
	if !c.EndDate.IsEmpty() && date > c.EndDate.String() {
		return false
	}
	return true
}

// Filter returns the matching transactions in their original relative order.
// The input is never modified and the result never aliases it.
func Filter(seq []Transaction, c Criteria) []Transaction {
	out := make([]Transaction, 0, len(seq))
	for _, t := range seq {
		if c.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
