package backend

import (
	"context"

	"budgeting/internal/core"
	"budgeting/internal/events"
	"budgeting/internal/export/sheets"
	"budgeting/internal/ledger"
)

// SheetsExporter writes the full ledger to an external spreadsheet.
type SheetsExporter interface {
	Export(ctx context.Context, seq []core.Transaction) (sheets.Result, error)
}

// ReadyFunc reports whether the storage behind a ledger can serve requests.
type ReadyFunc func(ctx context.Context) error

// Result contains everything a ledger needs. The ledger built by Ledger
// takes ownership of Store and Publisher and closes them on Close.
type Result struct {
	Store     ledger.Store
	Publisher events.Publisher
	// Exporter is nil when no spreadsheet is configured.
	Exporter SheetsExporter
	Ready    ReadyFunc
}

// Ledger builds a ledger over the result's store and publisher.
func (r *Result) Ledger(opts ...ledger.Option) *ledger.Ledger {
	opts = append([]ledger.Option{ledger.WithPublisher(r.Publisher)}, opts...)
	return ledger.New(r.Store, opts...)
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP (optional)
	AMQPURL           string
	AMQPExchange      string
	AMQPRoutingPrefix string

	// Kafka (optional)
	KafkaBrokers []string
	KafkaTopic   string

	// Sheets export (optional)
	Sheets sheets.Config
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
