package storage

import (
	"context"
	"path/filepath"
	"testing"

	"budgeting/internal/core"
	"budgeting/internal/ledger"
	"budgeting/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tx(id core.ID, day int, cents int64, tt core.TransactionType, c core.Category) core.Transaction {
	return core.Transaction{ID: id, Date: core.NewDate(2024, 1, day), Amount: core.Money{Cents: cents}, Type: tt, Category: c}
}

func TestSQLiteStoreInMemory(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "")

	for i, id := range []core.ID{"a", "b", "c"} {
		pos, err := s.Append(ctx, tx(id, i+1, int64(100*(i+1)), core.Expense, core.Bills))
		require.NoError(t, err)
		assert.Equal(t, i, pos)
	}

	pos, err := s.Replace(ctx, tx("b", 20, 777, core.Income, core.Salary))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, removed, err := s.Remove(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	assert.Equal(t, core.ID("a"), removed.ID)
	assert.Equal(t, int64(100), removed.Amount.Cents)

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, core.ID("b"), items[0].ID)
	assert.Equal(t, "2024-01-20", items[0].Date.String())
	assert.Equal(t, core.Income, items[0].Type)
	assert.Equal(t, core.Salary, items[0].Category)
	assert.Equal(t, int64(777), items[0].Amount.Cents)
	assert.Equal(t, core.ID("c"), items[1].ID)

	// a new row goes after survivors even though "a" freed seq 1
	pos, err = s.Append(ctx, tx("d", 5, 1, core.Expense, core.Other))
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestSQLiteStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, MemoryPath)

	_, err := s.Replace(ctx, tx("ghost", 1, 1, core.Income, core.Salary))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, _, err = s.Remove(ctx, "ghost")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSQLiteStoreEmptyListIsNotNil(t *testing.T) {
	s := newStore(t, "")
	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestSQLiteStoreFileReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.Append(ctx, tx("a", 1, 5, core.Income, core.Other))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// migrations are idempotent on an existing schema
	s = newStore(t, path)
	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, core.ID("a"), items[0].ID)
}

func TestLedgerOverSQLite(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(newStore(t, ""), ledger.WithLogger(log.Discard()))

	a, err := l.Add(ctx, tx("", 1, 100000, core.Income, core.Salary))
	require.NoError(t, err)
	_, err = l.Add(ctx, tx("", 15, 20000, core.Expense, core.Groceries))
	require.NoError(t, err)

	_, err = l.UpdateAt(ctx, 1, tx("", 16, 25000, core.Expense, core.Groceries))
	require.NoError(t, err)

	view, err := l.View(ctx, core.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, int64(75000), view.Summary.Balance.Cents)

	_, err = l.Delete(ctx, a.ID)
	require.NoError(t, err)
	n, err := l.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = l.DeleteAt(ctx, 3)
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
}

func TestSQLiteStoreRejectsUnknownEnumValues(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, MemoryPath)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, date, amount_cents, type, category) VALUES (?, ?, ?, ?, ?)`,
		"x", "2024-01-01", 100, "income", "travel")
	require.NoError(t, err)

	_, err = s.List(ctx)
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
}
