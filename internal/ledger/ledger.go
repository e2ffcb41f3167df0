// Package ledger owns the ordered collection of transactions.
//
// A Ledger is created with New and released with Close. Transactions get an
// opaque id when they are added; edits and deletes should go through that id
// so that a position taken from a filtered view can never hit the wrong
// entry. UpdateAt and DeleteAt remain for callers that hold positions in the
// full, unfiltered sequence.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"budgeting/internal/core"
	"budgeting/internal/events"
	"budgeting/internal/export"
	"budgeting/internal/log"
)

type Ledger struct {
	mu       sync.RWMutex
	store    Store
	cfg      *config
	dispatch *dispatcher
	revision uint64
	closed   bool
}

// View is one consistent read of the ledger: the filtered transactions, their
// totals and the revision they were taken at.
type View struct {
	Transactions []core.Transaction    `json:"transactions"`
	Summary      core.Summary          `json:"summary"`
	ByCategory   []core.CategoryAmount `json:"by_category"`
	Revision     uint64                `json:"revision"`
}

// New creates a ledger over store. The ledger serialises its own mutations,
// so store only needs to be safe for the ledger's use. Change events are
// delivered in the background until Close.
func New(store Store, opts ...Option) *Ledger {
	cfg := applyOptions(opts)
	return &Ledger{
		store:    store,
		cfg:      cfg,
		dispatch: newDispatcher(cfg.publisher, cfg.logger),
	}
}

// Add validates t, assigns it a fresh id and appends it to the end.
func (l *Ledger) Add(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.Transaction{}, ErrClosed
	}

	t.ID = l.cfg.newID()
	pos, err := l.store.Append(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	l.commit(ctx, events.Added, pos, t)
	return t, nil
}

// Update replaces the transaction with the given id, keeping its position.
func (l *Ledger) Update(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.Transaction{}, ErrClosed
	}
	return l.replace(ctx, id, t)
}

// UpdateAt replaces the transaction at index in the full sequence.
func (l *Ledger) UpdateAt(ctx context.Context, index int, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.Transaction{}, ErrClosed
	}
	id, err := l.idAt(ctx, index)
	if err != nil {
		return core.Transaction{}, err
	}
	return l.replace(ctx, id, t)
}

// Delete removes the transaction with the given id and returns it.
func (l *Ledger) Delete(ctx context.Context, id core.ID) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.Transaction{}, ErrClosed
	}
	return l.remove(ctx, id)
}

// DeleteAt removes the transaction at index in the full sequence. Later
// positions shift down by one.
func (l *Ledger) DeleteAt(ctx context.Context, index int) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.Transaction{}, ErrClosed
	}
	id, err := l.idAt(ctx, index)
	if err != nil {
		return core.Transaction{}, err
	}
	return l.remove(ctx, id)
}

// Get returns the transaction with the given id and its current position.
func (l *Ledger) Get(ctx context.Context, id core.ID) (core.Transaction, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return core.Transaction{}, 0, ErrClosed
	}
	seq, err := l.store.List(ctx)
	if err != nil {
		return core.Transaction{}, 0, fmt.Errorf("list transactions: %w", err)
	}
	for i, t := range seq {
		if t.ID == id {
			return t, i, nil
		}
	}
	return core.Transaction{}, 0, NotFound(id)
}

// Snapshot returns a copy of the full sequence in insertion order. The
// result never aliases ledger storage.
func (l *Ledger) Snapshot(ctx context.Context) ([]core.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	return l.snapshot(ctx)
}

// Len returns the number of transactions in the ledger.
func (l *Ledger) Len(ctx context.Context) (int, error) {
	seq, err := l.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(seq), nil
}

// Revision increases by one on every committed mutation.
func (l *Ledger) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

// View filters a snapshot with c and totals the result.
func (l *Ledger) View(ctx context.Context, c core.Criteria) (View, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return View{}, ErrClosed
	}
	seq, err := l.snapshot(ctx)
	if err != nil {
		return View{}, err
	}
	filtered := core.Filter(seq, c)
	return View{
		Transactions: filtered,
		Summary:      core.Summarize(filtered),
		ByCategory:   core.SummarizeByCategory(filtered),
		Revision:     l.revision,
	}, nil
}

// ExportJSON serialises the full, unfiltered ledger in the export format.
func (l *Ledger) ExportJSON(ctx context.Context) ([]byte, error) {
	seq, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return export.Encode(seq)
}

// Close ends the ledger's lifecycle. Queued events are delivered before the
// publisher is closed, and the store is closed if it implements io.Closer.
// Later calls return ErrClosed.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.closed = true

	var errs []error
	if err := l.dispatch.close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if c, ok := l.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	l.cfg.logger.Info("Ledger closed", log.FieldRevision, l.revision)
	return errors.Join(errs...)
}

func (l *Ledger) snapshot(ctx context.Context) ([]core.Transaction, error) {
	seq, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return append(make([]core.Transaction, 0, len(seq)), seq...), nil
}

func (l *Ledger) idAt(ctx context.Context, index int) (core.ID, error) {
	seq, err := l.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list transactions: %w", err)
	}
	if index < 0 || index >= len(seq) {
		return "", &IndexError{Index: index, Len: len(seq)}
	}
	return seq[index].ID, nil
}

func (l *Ledger) replace(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	t.ID = id
	pos, err := l.store.Replace(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("replace transaction: %w", err)
	}
	l.commit(ctx, events.Updated, pos, t)
	return t, nil
}

func (l *Ledger) remove(ctx context.Context, id core.ID) (core.Transaction, error) {
	pos, removed, err := l.store.Remove(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("remove transaction: %w", err)
	}
	l.commit(ctx, events.Deleted, pos, removed)
	return removed, nil
}

// commit bumps the revision and queues the change event. Must hold l.mu.
// Publishing happens off the lock; a failure is logged only, since the
// mutation already happened.
func (l *Ledger) commit(ctx context.Context, kind events.Kind, pos int, t core.Transaction) {
	l.revision++
	fields := log.NewFields().
		WithTransaction(t).
		WithPosition(pos).
		WithRevision(l.revision)
	l.cfg.logger.InfoContext(ctx, "Ledger changed", append(fields.ToSlice(), log.FieldEventKind, string(kind))...)

	l.dispatch.enqueue(ctx, events.Event{
		Kind:        kind,
		ID:          t.ID,
		Position:    pos,
		Revision:    l.revision,
		Transaction: t,
		OccurredAt:  l.cfg.now().UTC(),
	})
}
