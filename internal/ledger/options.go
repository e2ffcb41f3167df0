package ledger

import (
	"time"

	"budgeting/internal/core"
	"budgeting/internal/events"
	"budgeting/internal/log"

	"github.com/google/uuid"
)

// Option configures a Ledger via functional options pattern.
type Option func(*config)

type config struct {
	newID     func() core.ID
	publisher events.Publisher
	logger    *log.Logger
	now       func() time.Time
}

// WithIDGenerator replaces the random UUID generator. The generator must
// never return the same id twice for one ledger.
func WithIDGenerator(gen func() core.ID) Option {
	return func(c *config) {
		c.newID = gen
	}
}

// WithPublisher sets where change events go. Defaults to events.Noop.
func WithPublisher(p events.Publisher) Option {
	return func(c *config) {
		c.publisher = p
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		newID:     func() core.ID { return core.ID(uuid.NewString()) },
		publisher: events.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.New(log.DefaultConfig())
	}
	cfg.logger = cfg.logger.WithComponent(log.ComponentLedger)
	if cfg.publisher == nil {
		cfg.publisher = events.Noop{}
	}
	return cfg
}
