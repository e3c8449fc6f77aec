package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finctl/internal/amqp"
	"finctl/internal/mapping"
	"finctl/internal/services"
	"finctl/internal/storage"
	"finctl/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.OpenStore(ctx, config)
	if err != nil {
		return nil, err
	}

	// Initialize AMQP client (optional)
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	ledger, err := services.NewLedgerService(ctx, store, publisher)
	if err != nil {
		store.Close()
		if amqpClient != nil {
			amqpClient.Close()
		}
		return nil, fmt.Errorf("failed to initialize ledger service: %w", err)
	}

	if err := f.seedMappings(ctx, ledger, config.MappingsFile); err != nil {
		ledger.Close()
		return nil, err
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Ledger:    ledger,
		Store:     store,
		Publisher: amqpClient,
		Cleanup:   ledger.Close,
	}, nil
}

// OpenStore implements Factory.OpenStore
func (f *DefaultFactory) OpenStore(_ context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case MemoryBackend:
		return f.createMemoryStore(config), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (storage.Store, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return sqliteRepo, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) storage.Store {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}

// seedMappings installs the rules of path unless the store already carries
// its own table. Rules edited through the API are never overwritten.
func (f *DefaultFactory) seedMappings(ctx context.Context, ledger *services.LedgerService, path string) error {
	if path == "" {
		return nil
	}
	if ledger.Status().CustomRules {
		f.logger.Info("Store already has custom mappings, ignoring mappings file", "path", path)
		return nil
	}

	rules, err := mapping.LoadFile(path)
	if errors.Is(err, mapping.ErrNoRules) {
		return fmt.Errorf("mappings file %s has no rules: %w", path, err)
	}
	if err != nil {
		return fmt.Errorf("load mappings file: %w", err)
	}
	if err := ledger.SetMappings(ctx, rules); err != nil {
		return fmt.Errorf("install mappings from %s: %w", path, err)
	}

	f.logger.Info("Installed mappings from file", "path", path, "rules", len(rules))
	return nil
}
