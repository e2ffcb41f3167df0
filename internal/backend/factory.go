package backend

import (
	"context"
	"fmt"

	"budgeting/internal/events"
	"budgeting/internal/events/amqp"
	"budgeting/internal/events/kafka"
	"budgeting/internal/export/sheets"
	"budgeting/internal/ledger/memory"
	"budgeting/internal/log"
	"budgeting/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger

	// Transport constructors, replaceable in tests.
	newAMQP   func(ctx context.Context, c Config, logger *log.Logger) (events.Publisher, error)
	newKafka  func(c Config, logger *log.Logger) events.Publisher
	newSheets func(ctx context.Context, c sheets.Config, logger *log.Logger) (SheetsExporter, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:    logger.WithComponent(log.ComponentBackend),
		newAMQP:   dialAMQP,
		newKafka:  openKafka,
		newSheets: openSheets,
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend implements Factory.CreateBackend. Optional transports that
// fail to start are logged and skipped; the ledger keeps working without them.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var result *Result
	var err error
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result.Publisher = f.createPublisher(ctx, config)

	if config.Sheets.Enabled() {
		exp, err := f.newSheets(ctx, config.Sheets, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets exporter, continuing without it", log.FieldError, err)
		} else {
			result.Exporter = exp
			f.logger.Info("Initialized Google Sheets exporter", "sheet", config.Sheets.SheetName)
		}
	}

	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Result{
		Store: store,
		Ready: store.Ping,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *Result {
	f.logger.Info("Initialized memory backend")

	return &Result{
		Store: memory.New(),
		Ready: func(context.Context) error { return nil },
	}
}

func (f *DefaultFactory) createPublisher(ctx context.Context, config Config) events.Publisher {
	var publishers []events.Publisher

	if config.AMQPURL != "" {
		p, err := f.newAMQP(ctx, config, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP publisher, continuing without it", log.FieldError, err)
		} else {
			publishers = append(publishers, p)
			f.logger.Info("Initialized AMQP publisher",
				"exchange", config.AMQPExchange,
				"routing_prefix", config.AMQPRoutingPrefix)
		}
	}

	if len(config.KafkaBrokers) > 0 {
		publishers = append(publishers, f.newKafka(config, f.logger))
		f.logger.Info("Initialized Kafka publisher",
			"brokers", config.KafkaBrokers,
			"topic", config.KafkaTopic)
	}

	return events.Combine(publishers...)
}

func dialAMQP(ctx context.Context, c Config, logger *log.Logger) (events.Publisher, error) {
	return amqp.NewPublisher(ctx, c.AMQPURL, c.AMQPExchange, c.AMQPRoutingPrefix, logger)
}

func openKafka(c Config, logger *log.Logger) events.Publisher {
	return kafka.NewPublisher(c.KafkaBrokers, c.KafkaTopic, logger)
}

func openSheets(ctx context.Context, c sheets.Config, logger *log.Logger) (SheetsExporter, error) {
	return sheets.New(ctx, c, logger)
}
