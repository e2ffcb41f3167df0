// Package storage implements the ledger store on SQLite (pure Go driver).
// The default path is an in-memory database that lives as long as the
// process; a file path keeps the data on disk.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"budgeting/internal/core"
	"budgeting/internal/ledger"

	_ "modernc.org/sqlite"
)

// MemoryPath selects a process-lifetime database.
const MemoryPath = ":memory:"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}
	if !isMemory(dbPath) {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: an in-memory database is private to its connection,
	// and SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func isMemory(path string) bool {
	return path == MemoryPath || strings.Contains(path, "mode=memory")
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable. Used for readiness.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Append(ctx context.Context, t core.Transaction) (int, error) {
	var pos int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, date, amount_cents, type, category) VALUES (?, ?, ?, ?, ?)`,
			string(t.ID), t.Date.String(), t.Amount.Cents, string(t.Type), string(t.Category))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		pos, err = position(ctx, tx, seq)
		return err
	})
	return pos, err
}

// Replace overwrites the row in place; seq, and so the position, is kept.
func (s *SQLiteStore) Replace(ctx context.Context, t core.Transaction) (int, error) {
	var pos int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		seq, err := seqOf(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET date = ?, amount_cents = ?, type = ?, category = ? WHERE seq = ?`,
			t.Date.String(), t.Amount.Cents, string(t.Type), string(t.Category), seq); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		pos, err = position(ctx, tx, seq)
		return err
	})
	return pos, err
}

func (s *SQLiteStore) Remove(ctx context.Context, id core.ID) (int, core.Transaction, error) {
	var (
		pos     int
		removed core.Transaction
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT seq, id, date, amount_cents, type, category FROM transactions WHERE id = ?`, string(id))
		var seq int64
		t, err := scanTransaction(row, &seq)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.NotFound(id)
		}
		if err != nil {
			return err
		}
		if pos, err = position(ctx, tx, seq); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE seq = ?`, seq); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		removed = t
		return nil
	})
	return pos, removed, err
}

// List returns the full sequence in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, date, amount_cents, type, category FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var seq int64
		t, err := scanTransaction(rows, &seq)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner, seq *int64) (core.Transaction, error) {
	var id, date, txType, category string
	var cents int64
	if err := row.Scan(seq, &id, &date, &cents, &txType, &category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", id, err)
	}
	tt, err := core.ParseTransactionType(txType)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", id, err)
	}
	c, err := core.ParseCategory(category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", id, err)
	}
	return core.Transaction{
		ID:       core.ID(id),
		Date:     d,
		Amount:   core.Money{Cents: cents},
		Type:     tt,
		Category: c,
	}, nil
}

func seqOf(ctx context.Context, tx *sql.Tx, id core.ID) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, `SELECT seq FROM transactions WHERE id = ?`, string(id)).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.NotFound(id)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup transaction: %w", err)
	}
	return seq, nil
}

// position is the zero-based offset of seq in insertion order.
func position(ctx context.Context, tx *sql.Tx, seq int64) (int, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE seq < ?`, seq).Scan(&n); err != nil {
		return 0, fmt.Errorf("count position: %w", err)
	}
	return n, nil
}

var _ ledger.Store = (*SQLiteStore)(nil)
