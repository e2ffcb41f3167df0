// Package kafka publishes ledger events to a Kafka topic. Messages are keyed
// by transaction id so every change to one transaction lands on the same
// partition, in order.
package kafka

import (
	"context"
	"fmt"
	"time"

	"budgeting/internal/events"
	"budgeting/internal/log"

	"github.com/segmentio/kafka-go"
)

const (
	writeTimeout = 5 * time.Second
	// A synchronous write returns once its batch flushes; one event per
	// batch, flushed almost at once.
	batchTimeout = 10 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
	logger *log.Logger
}

func NewPublisher(brokers []string, topic string, logger *log.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           writeTimeout,
		BatchSize:              1,
		BatchTimeout:           batchTimeout,
	}, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Publisher{
		writer: w,
		topic:  topic,
		logger: logger.WithComponent(log.ComponentKafka),
	}
}

// Publish writes e as JSON, keyed by transaction id, with the event kind
// in a header.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.ID),
		Value: data,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}

	p.logger.DebugContext(ctx, "Published ledger event",
		log.FieldEventKind, string(e.Kind),
		log.FieldTransactionID, string(e.ID),
		log.FieldRevision, e.Revision,
		"topic", p.topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ events.Publisher = (*Publisher)(nil)
