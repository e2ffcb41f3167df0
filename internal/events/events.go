// Package events describes ledger change notifications and the publishers
// that carry them to other systems.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"budgeting/internal/core"
)

type Kind string

const (
	Added   Kind = "transaction.added"
	Updated Kind = "transaction.updated"
	Deleted Kind = "transaction.deleted"
)

// Event is emitted once per committed ledger mutation. Position is the
// offset in the full sequence at the time of the change; for Deleted it is
// the position the transaction occupied before removal.
type Event struct {
	Kind        Kind             `json:"kind"`
	ID          core.ID          `json:"id"`
	Position    int              `json:"position"`
	Revision    uint64           `json:"revision"`
	Transaction core.Transaction `json:"transaction"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher delivers events to a transport. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Multi fans an event out to several publishers. Every publisher is tried;
// the failures are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns the smallest publisher serving all of ps, ignoring nils.
func Combine(ps ...Publisher) Publisher {
	var out Multi
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return Noop{}
	case 1:
		return out[0]
	default:
		return out
	}
}
