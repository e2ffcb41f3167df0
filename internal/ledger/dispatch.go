package ledger

import (
	"context"
	"sync"

	"budgeting/internal/events"
	"budgeting/internal/log"
)

// dispatcher publishes change events on its own goroutine, in the order
// they were enqueued. The ledger enqueues while holding its lock, so that
// order is revision order.
type dispatcher struct {
	publisher events.Publisher
	logger    *log.Logger

	mu      sync.Mutex
	pending []queuedEvent
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

type queuedEvent struct {
	ctx   context.Context
	event events.Event
}

func newDispatcher(p events.Publisher, logger *log.Logger) *dispatcher {
	d := &dispatcher{
		publisher: p,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// enqueue never blocks on the publisher. The request context keeps its
// values for logging but not its cancellation.
func (d *dispatcher) enqueue(ctx context.Context, e events.Event) {
	d.mu.Lock()
	d.pending = append(d.pending, queuedEvent{ctx: context.WithoutCancel(ctx), event: e})
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		closed := d.closed
		d.mu.Unlock()

		for _, q := range batch {
			d.publish(q)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

func (d *dispatcher) publish(q queuedEvent) {
	e := q.event
	if err := d.publisher.Publish(q.ctx, e); err != nil {
		d.logger.WarnContext(q.ctx, "Failed to publish ledger event",
			log.FieldEventKind, string(e.Kind),
			log.FieldTransactionID, string(e.ID),
			log.FieldRevision, e.Revision,
			log.FieldError, err)
	}
}

// close delivers everything already queued, then closes the publisher.
func (d *dispatcher) close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
	<-d.done
	return d.publisher.Close()
}
