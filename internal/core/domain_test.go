package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-01", true},
		{"2024-02-29", true},
		{" 2024-12-31 ", true},
		{"2023-02-29", false}, // not a leap year
		{"2024-1-01", false},
		{"01/01/2024", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, len("2006-01-02"), len(d.String()))
			continue
		}
		require.Error(t, err, tc.in)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
		assert.Equal(t, "date", verr.Field)
	}
}

func TestEnumsParse(t *testing.T) {
	tt, err := ParseTransactionType("Expense")
	require.NoError(t, err)
	assert.Equal(t, Expense, tt)

	_, err = ParseTransactionType("transfer")
	assert.ErrorIs(t, err, ErrInvalidType)

	c, err := ParseCategory(" BILLS ")
	require.NoError(t, err)
	assert.Equal(t, Bills, c)

	_, err = ParseCategory("rent")
	assert.ErrorIs(t, err, ErrInvalidCategory)

	assert.Equal(t, []TransactionType{Income, Expense}, Types())
	assert.Equal(t, []Category{Salary, Groceries, Bills, Other}, Categories())
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{Date: NewDate(2024, 1, 1), Amount: Money{Cents: 0}, Type: Income, Category: Salary}
	require.NoError(t, good.Validate())

	bads := []struct {
		tx    Transaction
		field string
	}{
		{Transaction{Amount: Money{Cents: 1}, Type: Income, Category: Salary}, "date"},
		{Transaction{Date: NewDate(2024, 1, 1), Amount: Money{Cents: -1}, Type: Income, Category: Salary}, "amount"},
		{Transaction{Date: NewDate(2024, 1, 1), Amount: Money{Cents: 1}, Type: "gift", Category: Salary}, "type"},
		{Transaction{Date: NewDate(2024, 1, 1), Amount: Money{Cents: 1}, Type: Income, Category: ""}, "category"},
	}
	for i, b := range bads {
		err := b.tx.Validate()
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "case %d", i)
		assert.Equal(t, b.field, verr.Field, "case %d", i)
	}
}

func TestParseTransactionDefaults(t *testing.T) {
	tx, err := ParseTransaction("2024-01-15", "200", "", "")
	require.NoError(t, err)
	assert.Equal(t, Income, tx.Type)
	assert.Equal(t, Salary, tx.Category)
	assert.Equal(t, int64(20000), tx.Amount.Cents)

	_, err = ParseTransaction("", "200", "expense", "bills")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = ParseTransaction("2024-01-15", "", "expense", "bills")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = ParseTransaction("2024-01-15", "ten", "expense", "bills")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransactionJSON(t *testing.T) {
	tx := Transaction{ID: "a1", Date: NewDate(2024, 1, 15), Amount: Money{Cents: 1250}, Type: Expense, Category: Groceries}
	b, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a1","date":"2024-01-15","amount":12.5,"type":"expense","category":"groceries"}`, string(b))

	var back Transaction
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, tx.ID, back.ID)
	assert.True(t, tx.Equal(back))

	err = json.Unmarshal([]byte(`{"date":"2024-01-15","amount":1,"type":"loan","category":"other"}`), &back)
	assert.ErrorIs(t, err, ErrInvalidType)
}
