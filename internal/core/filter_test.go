package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Transaction {
	return []Transaction{
		{ID: "1", Date: NewDate(2024, 1, 1), Amount: Money{Cents: 100000}, Type: Income, Category: Salary},
		{ID: "2", Date: NewDate(2024, 1, 15), Amount: Money{Cents: 20000}, Type: Expense, Category: Groceries},
		{ID: "3", Date: NewDate(2024, 2, 1), Amount: Money{Cents: 9000}, Type: Expense, Category: Bills},
		{ID: "4", Date: NewDate(2024, 2, 10), Amount: Money{Cents: 5000}, Type: Income, Category: Other},
		{ID: "5", Date: NewDate(2024, 3, 3), Amount: Money{Cents: 1500}, Type: Expense, Category: Groceries},
	}
}

func ids(seq []Transaction) []ID {
	out := make([]ID, len(seq))
	for i, t := range seq {
		out[i] = t.ID
	}
	return out
}

func TestFilterEmptyCriteriaIsIdentity(t *testing.T) {
	seq := sample()
	got := Filter(seq, Criteria{})
	assert.Equal(t, seq, got)

	got[0].Amount = Money{Cents: 1}
	assert.Equal(t, int64(100000), seq[0].Amount.Cents, "filtered view must not alias input")
}

func TestFilterClauses(t *testing.T) {
	seq := sample()
	cases := []struct {
		name string
		c    Criteria
		want []ID
	}{
		{"type", Criteria{Type: Expense}, []ID{"2", "3", "5"}},
		{"category", Criteria{Category: Groceries}, []ID{"2", "5"}},
		{"start inclusive", Criteria{StartDate: NewDate(2024, 2, 1)}, []ID{"3", "4", "5"}},
		{"end inclusive", Criteria{EndDate: NewDate(2024, 1, 15)}, []ID{"1", "2"}},
		{"range", Criteria{StartDate: NewDate(2024, 1, 2), EndDate: NewDate(2024, 2, 28)}, []ID{"2", "3", "4"}},
		{"all clauses", Criteria{Type: Expense, Category: Groceries, StartDate: NewDate(2024, 3, 1)}, []ID{"5"}},
		{"empty range", Criteria{StartDate: NewDate(2024, 3, 1), EndDate: NewDate(2024, 1, 1)}, []ID{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Filter(seq, tc.c)
			assert.Equal(t, tc.want, ids(got))
			for _, tx := range got {
				assert.True(t, tc.c.Matches(tx))
			}
		})
	}
}

func TestParseCriteria(t *testing.T) {
	c, err := ParseCriteria("all", "ALL", "", "")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "all|all||", c.Key())

	c, err = ParseCriteria("expense", "bills", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, Criteria{Type: Expense, Category: Bills, StartDate: NewDate(2024, 1, 1), EndDate: NewDate(2024, 1, 31)}, c)
	assert.Equal(t, "expense|bills|2024-01-01|2024-01-31", c.Key())

	_, err = ParseCriteria("x", "", "", "")
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = ParseCriteria("", "", "yesterday", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
