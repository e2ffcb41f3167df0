package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeScenario(t *testing.T) {
	seq := []Transaction{
		{Date: NewDate(2024, 1, 1), Amount: Money{Cents: 100000}, Type: Income, Category: Salary},
		{Date: NewDate(2024, 1, 15), Amount: Money{Cents: 20000}, Type: Expense, Category: Groceries},
	}

	all := Summarize(Filter(seq, Criteria{}))
	assert.Equal(t, Summary{TotalIncome: Money{100000}, TotalExpense: Money{20000}, Balance: Money{80000}, Count: 2}, all)

	exp := Filter(seq, Criteria{Type: Expense})
	assert.Len(t, exp, 1)
	s := Summarize(exp)
	assert.Equal(t, Money{0}, s.TotalIncome)
	assert.Equal(t, Money{20000}, s.TotalExpense)
	assert.Equal(t, Money{-20000}, s.Balance)
}

func TestSummarizeBalanceInvariant(t *testing.T) {
	seq := sample()
	for _, c := range []Criteria{{}, {Type: Income}, {Category: Groceries}, {StartDate: NewDate(2024, 2, 1)}} {
		s := Summarize(Filter(seq, c))
		assert.Equal(t, s.TotalIncome.Cents-s.TotalExpense.Cents, s.Balance.Cents)
	}
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummarizeByCategory(t *testing.T) {
	rows := SummarizeByCategory(sample())
	assert.Equal(t, []CategoryAmount{
		{Category: Salary, Income: Money{100000}},
		{Category: Groceries, Expense: Money{21500}},
		{Category: Bills, Expense: Money{9000}},
		{Category: Other, Income: Money{5000}},
	}, rows)
}

func TestSummarizeLargestAmountsDoNotWrap(t *testing.T) {
	top := Money{Cents: MaxAmountCents}
	seq := []Transaction{
		{Date: NewDate(2024, 1, 1), Amount: top, Type: Income, Category: Salary},
		{Date: NewDate(2024, 1, 2), Amount: top, Type: Income, Category: Salary},
		{Date: NewDate(2024, 1, 3), Amount: top, Type: Expense, Category: Bills},
	}
	for _, tx := range seq {
		assert.NoError(t, tx.Validate())
	}

	s := Summarize(seq)
	assert.Equal(t, 2*MaxAmountCents, s.TotalIncome.Cents)
	assert.Equal(t, MaxAmountCents, s.TotalExpense.Cents)
	assert.Equal(t, MaxAmountCents, s.Balance.Cents)

	rows := SummarizeByCategory(seq)
	assert.Equal(t, 2*MaxAmountCents, rows[0].Income.Cents)
}
