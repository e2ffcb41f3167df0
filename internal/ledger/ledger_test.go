package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"budgeting/internal/core"
	"budgeting/internal/events"
	"budgeting/internal/export"
	"budgeting/internal/ledger"
	"budgeting/internal/ledger/memory"
	"budgeting/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// gatedPublisher holds every Publish until release is closed.
type gatedPublisher struct {
	recordingPublisher
	release chan struct{}
}

func (p *gatedPublisher) Publish(ctx context.Context, e events.Event) error {
	<-p.release
	return p.recordingPublisher.Publish(ctx, e)
}

func sequentialIDs() func() core.ID {
	var n int
	return func() core.ID {
		n++
		return core.ID(fmt.Sprintf("t%d", n))
	}
}

func newLedger(t *testing.T, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	opts = append([]ledger.Option{ledger.WithLogger(log.Discard()), ledger.WithIDGenerator(sequentialIDs())}, opts...)
	l := ledger.New(memory.New(), opts...)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

var (
	salary = core.Transaction{Date: core.NewDate(2024, 1, 1), Amount: core.Money{Cents: 100000}, Type: core.Income, Category: core.Salary}
	food   = core.Transaction{Date: core.NewDate(2024, 1, 15), Amount: core.Money{Cents: 20000}, Type: core.Expense, Category: core.Groceries}
	bills  = core.Transaction{Date: core.NewDate(2024, 2, 1), Amount: core.Money{Cents: 9000}, Type: core.Expense, Category: core.Bills}
)

func TestAddAssignsIDsAndPreservesOrder(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	a, err := l.Add(ctx, salary)
	require.NoError(t, err)
	b, err := l.Add(ctx, food)
	require.NoError(t, err)
	assert.Equal(t, core.ID("t1"), a.ID)
	assert.Equal(t, core.ID("t2"), b.ID)

	seq, err := l.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.True(t, seq[0].Equal(salary))
	assert.True(t, seq[1].Equal(food))
	assert.Equal(t, uint64(2), l.Revision())
}

func TestAddRejectsInvalid(t *testing.T) {
	l := newLedger(t)
	bad := salary
	bad.Amount = core.Money{Cents: -5}

	_, err := l.Add(context.Background(), bad)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "amount", verr.Field)

	n, err := l.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, l.Revision())
}

func TestDeleteAtShiftsDown(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _ = l.Add(ctx, salary)
	_, _ = l.Add(ctx, food)

	removed, err := l.DeleteAt(ctx, 0)
	require.NoError(t, err)
	assert.True(t, removed.Equal(salary))

	seq, _ := l.Snapshot(ctx)
	require.Len(t, seq, 1)
	assert.True(t, seq[0].Equal(food))
}

func TestUpdateAtReplacesOnlyThatIndex(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _ = l.Add(ctx, salary)
	second, _ := l.Add(ctx, food)

	updated, err := l.UpdateAt(ctx, 1, bills)
	require.NoError(t, err)
	assert.Equal(t, second.ID, updated.ID, "update keeps identity")

	seq, _ := l.Snapshot(ctx)
	require.Len(t, seq, 2)
	assert.True(t, seq[0].Equal(salary))
	assert.True(t, seq[1].Equal(bills))
}

func TestPositionalOpsOutOfRange(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _ = l.Add(ctx, salary)

	for _, idx := range []int{-1, 1, 10} {
		_, err := l.UpdateAt(ctx, idx, food)
		assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
		var ierr *ledger.IndexError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, idx, ierr.Index)
		assert.Equal(t, 1, ierr.Len)

		_, err = l.DeleteAt(ctx, idx)
		assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
	}

	seq, _ := l.Snapshot(ctx)
	require.Len(t, seq, 1)
	assert.True(t, seq[0].Equal(salary), "ledger stays in last-known-good state")
	assert.Equal(t, uint64(1), l.Revision())
}

// Editing through an id taken from a filtered view must hit the same entry
// regardless of where it sits in the full sequence.
func TestUpdateAndDeleteByIDFromFilteredView(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _ = l.Add(ctx, salary)
	_, _ = l.Add(ctx, food)
	_, _ = l.Add(ctx, bills)

	view, err := l.View(ctx, core.Criteria{Type: core.Expense})
	require.NoError(t, err)
	require.Len(t, view.Transactions, 2)
	target := view.Transactions[1] // bills: position 1 in view, 2 in ledger

	changed := bills
	changed.Amount = core.Money{Cents: 12345}
	_, err = l.Update(ctx, target.ID, changed)
	require.NoError(t, err)

	got, pos, err := l.Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, int64(12345), got.Amount.Cents)

	seq, _ := l.Snapshot(ctx)
	assert.True(t, seq[1].Equal(food), "entry at the view position is untouched")

	_, err = l.Delete(ctx, view.Transactions[0].ID)
	require.NoError(t, err)
	seq, _ = l.Snapshot(ctx)
	require.Len(t, seq, 2)
	assert.Equal(t, core.ID("t1"), seq[0].ID)
	assert.Equal(t, core.ID("t3"), seq[1].ID)
}

func TestStaleIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	a, _ := l.Add(ctx, salary)
	_, err := l.Delete(ctx, a.ID)
	require.NoError(t, err)

	_, err = l.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = l.Update(ctx, a.ID, food)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, _, err = l.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _ = l.Add(ctx, salary)

	seq, _ := l.Snapshot(ctx)
	seq[0].Amount = core.Money{Cents: 1}

	again, _ := l.Snapshot(ctx)
	require.Len(t, again, 1)
	assert.Equal(t, int64(100000), again[0].Amount.Cents)
}

func TestViewScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _ = l.Add(ctx, salary)
	_, _ = l.Add(ctx, food)

	all, err := l.View(ctx, core.Criteria{})
	require.NoError(t, err)
	assert.Len(t, all.Transactions, 2)
	assert.Equal(t, int64(100000), all.Summary.TotalIncome.Cents)
	assert.Equal(t, int64(20000), all.Summary.TotalExpense.Cents)
	assert.Equal(t, int64(80000), all.Summary.Balance.Cents)
	assert.Equal(t, uint64(2), all.Revision)

	exp, err := l.View(ctx, core.Criteria{Type: core.Expense})
	require.NoError(t, err)
	assert.Len(t, exp.Transactions, 1)
	assert.Equal(t, int64(0), exp.Summary.TotalIncome.Cents)
	assert.Equal(t, int64(-20000), exp.Summary.Balance.Cents)
}

func TestExportJSONIsFullLedgerAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _ = l.Add(ctx, salary)
	_, _ = l.Add(ctx, food)
	_, _ = l.Add(ctx, bills)

	b, err := l.ExportJSON(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"id"`)

	back, err := export.Decode(b)
	require.NoError(t, err)
	seq, _ := l.Snapshot(ctx)
	require.Len(t, back, len(seq))
	for i := range seq {
		assert.True(t, seq[i].Equal(back[i]))
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newLedger(t, ledger.WithPublisher(pub), ledger.WithClock(func() time.Time { return at }))

	a, _ := l.Add(ctx, salary)
	_, _ = l.Add(ctx, food)
	_, _ = l.UpdateAt(ctx, 0, bills)
	_, _ = l.Delete(ctx, a.ID)
	_, _ = l.DeleteAt(ctx, 7) // rejected: no event
	require.NoError(t, l.Close())

	require.Len(t, pub.events, 4)
	kinds := []events.Kind{events.Added, events.Added, events.Updated, events.Deleted}
	for i, e := range pub.events {
		assert.Equal(t, kinds[i], e.Kind)
		assert.Equal(t, uint64(i+1), e.Revision)
		assert.Equal(t, at, e.OccurredAt)
	}
	assert.Equal(t, 1, pub.events[1].Position)
	assert.Equal(t, a.ID, pub.events[3].ID)
	assert.True(t, pub.events[3].Transaction.Equal(bills))
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := newLedger(t, ledger.WithPublisher(pub))

	_, err := l.Add(ctx, salary)
	require.NoError(t, err)
	n, _ := l.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestSlowPublisherDoesNotHoldLedger(t *testing.T) {
	ctx := context.Background()
	pub := &gatedPublisher{release: make(chan struct{})}
	l := ledger.New(memory.New(), ledger.WithLogger(log.Discard()), ledger.WithPublisher(pub))

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			if _, err := l.Add(ctx, salary); err != nil {
				done <- err
				return
			}
		}
		_, err := l.View(ctx, core.Criteria{})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mutations and reads waited on the publisher")
	}

	close(pub.release)
	require.NoError(t, l.Close())
	require.Len(t, pub.events, 3)
	for i, e := range pub.events {
		assert.Equal(t, uint64(i+1), e.Revision)
	}
	assert.True(t, pub.closed)
}

func TestCloseEndsLifecycle(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := ledger.New(memory.New(), ledger.WithLogger(log.Discard()), ledger.WithPublisher(pub))

	require.NoError(t, l.Close())
	assert.True(t, pub.closed)
	assert.ErrorIs(t, l.Close(), ledger.ErrClosed)

	_, err := l.Add(ctx, salary)
	assert.ErrorIs(t, err, ledger.ErrClosed)
	_, err = l.Snapshot(ctx)
	assert.ErrorIs(t, err, ledger.ErrClosed)
	_, err = l.View(ctx, core.Criteria{})
	assert.ErrorIs(t, err, ledger.ErrClosed)
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(), ledger.WithLogger(log.Discard()))
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Add(ctx, food)
		}()
	}
	wg.Wait()

	seq, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, seq, 50)
	assert.Equal(t, uint64(50), l.Revision())

	seen := map[core.ID]bool{}
	for _, tx := range seq {
		assert.False(t, seen[tx.ID], "duplicate id %s", tx.ID)
		seen[tx.ID] = true
	}
}
