// Package amqp publishes ledger events to a RabbitMQ topic exchange.
//
// Routing keys are "<prefix>.transaction.<added|updated|deleted>", so a
// consumer can bind "ledger.transaction.*" or a single kind. A circuit
// breaker stops publish attempts for a while after repeated failures so a
// dead broker does not slow every mutation down.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"budgeting/internal/events"
	"budgeting/internal/log"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialAttempts   = 3
	maxBackoff     = 30 * time.Second
)

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// channel is the subset of *amqp091.Channel used here.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

type Publisher struct {
	url           string
	exchangeName  string
	routingPrefix string
	logger        *log.Logger
	dial          dialFunc

	mu      sync.Mutex
	conn    io.Closer
	channel channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewPublisher dials url and declares a durable topic exchange. The dial is
// retried with exponential backoff before giving up.
func NewPublisher(ctx context.Context, url, exchangeName, routingPrefix string, logger *log.Logger) (*Publisher, error) {
	return newPublisher(ctx, url, exchangeName, routingPrefix, logger, dialAMQP)
}

func newPublisher(ctx context.Context, url, exchangeName, routingPrefix string, logger *log.Logger, dial dialFunc) (*Publisher, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	p := &Publisher{
		url:           url,
		exchangeName:  exchangeName,
		routingPrefix: routingPrefix,
		logger:        logger.WithComponent(log.ComponentAMQP),
		dial:          dial,
	}

	var err error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			wait := exponentialBackoff(attempt - 1)
			p.logger.Warn("Retrying AMQP connection", "attempt", attempt+1, "backoff", wait.String(), log.FieldError, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		p.mu.Lock()
		err = p.connectLocked()
		p.mu.Unlock()
		if err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("connect to AMQP after %d attempts: %w", dialAttempts, err)
}

func dialAMQP(url string) (channel, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn, nil
}

// connectLocked must be called with p.mu held.
func (p *Publisher) connectLocked() error {
	ch, conn, err := p.dial(p.url)
	if err != nil {
		return err
	}
	err = ch.ExchangeDeclare(
		p.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		if conn != nil {
			conn.Close()
		}
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.channel, p.conn = ch, conn
	return nil
}

// RoutingKey returns the routing key used for events of the given kind.
func RoutingKey(prefix string, kind events.Kind) string {
	if prefix == "" {
		return string(kind)
	}
	return prefix + "." + string(kind)
}

// Publish sends e as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", e.Kind, ErrCircuitOpen)
	}

	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		if err := p.connectLocked(); err != nil {
			p.recordFailure()
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	key := RoutingKey(p.routingPrefix, e.Kind)
	err = p.channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		key,            // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    fmt.Sprintf("%s:%d", e.ID, e.Revision),
			Type:         string(e.Kind),
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		p.recordFailure()
		if isConnectionError(err) {
			p.dropLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	p.recordSuccess()

	p.logger.DebugContext(ctx, "Published ledger event",
		log.FieldEventKind, string(e.Kind),
		log.FieldTransactionID, string(e.ID),
		log.FieldRevision, e.Revision,
		"exchange", p.exchangeName,
		"routing_key", key)
	return nil
}

// dropLocked discards a broken channel so the next publish reconnects.
func (p *Publisher) dropLocked() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err)
		}
		p.channel = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}

func (p *Publisher) isCircuitOpen() bool {
	if atomic.LoadInt32(&p.state) != StateOpen {
		return false
	}
	p.mu.Lock()
	last := p.lastFailure
	p.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&p.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

// recordFailure must be called with p.mu held.
func (p *Publisher) recordFailure() {
	p.lastFailure = time.Now()
	n := atomic.AddInt64(&p.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&p.state) == StateHalfOpen {
		if atomic.SwapInt32(&p.state, StateOpen) != StateOpen {
			p.logger.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func (p *Publisher) recordSuccess() {
	atomic.StoreInt64(&p.failureCount, 0)
	atomic.StoreInt32(&p.state, StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var _ events.Publisher = (*Publisher)(nil)
