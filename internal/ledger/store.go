package ledger

import (
	"context"
	"errors"
	"fmt"

	"budgeting/internal/core"
)

var (
	// ErrNotFound reports an identity that is not (or no longer) in the ledger.
	ErrNotFound = errors.New("transaction not found")

	// ErrIndexOutOfRange is matched by every *IndexError.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("ledger closed")
)

// IndexError reports a position outside the full sequence.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// Store keeps the ordered sequence behind a Ledger. Positions returned are
// offsets in the full sequence. Replace and Remove address a transaction by
// ID and return an error wrapping ErrNotFound for unknown ids; Replace keeps
// the position of the transaction it overwrites.
type Store interface {
	Append(ctx context.Context, t core.Transaction) (pos int, err error)
	Replace(ctx context.Context, t core.Transaction) (pos int, err error)
	Remove(ctx context.Context, id core.ID) (pos int, removed core.Transaction, err error)
	List(ctx context.Context) ([]core.Transaction, error)
}

// NotFound wraps ErrNotFound with the offending id. Stores use it so that
// callers can match with errors.Is.
func NotFound(id core.ID) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
