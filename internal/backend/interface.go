package backend

import (
	"context"

	"finctl/internal/amqp"
	"finctl/internal/services"
	"finctl/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired ledger and optional cleanup function
type BackendResult struct {
	Ledger *services.LedgerService
	Store  storage.Store
	// Publisher is nil when AMQP is disabled or unreachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store and builds the ledger service on top of it
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// OpenStore opens only the store, for processes that read the dataset
	OpenStore(ctx context.Context, config Config) (storage.Store, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Change notifications, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend seed directory
	DataDirectory string

	// Rule table loaded when the store has none of its own
	MappingsFile string
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

// Persistent reports whether data outlives the process and can be shared
// with another one.
func (bt BackendType) Persistent() bool {
	return bt == SQLiteBackend
}
