package backend

import (
	"context"
	"errors"
	"fmt"

	"hisab/internal/amqp"
	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/seed"
	"hisab/internal/storage"
	"hisab/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Backend
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		store, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Store: store, Cleanup: store.Close}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change notifications",
				log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
			result.Cleanup = func() error {
				return errors.Join(client.Close(), store.Close())
			}
		}
	}

	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (storage.Backend, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedFile != "" {
		seeded, err := seedIfEmpty(ctx, repo, config)
		if err != nil {
			repo.Close()
			return nil, err
		}
		if seeded {
			f.logger.InfoContext(ctx, "Seeded empty database", "seed_file", config.SeedFile)
		}
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (storage.Backend, error) {
	ds, err := loadSeed(config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized memory backend",
		"seed_file", config.SeedFile,
		"rooms", len(ds.Rooms),
		"renters", len(ds.Renters))
	return memory.New(ds), nil
}

func loadSeed(config Config) (core.Dataset, error) {
	if config.SeedFile == "" {
		return seed.Default()
	}
	initiation := config.InitiationDate
	if initiation.IsZero() {
		initiation = core.DefaultInitiationDate
	}
	return seed.FromFile(config.SeedFile, initiation)
}

// seedIfEmpty loads the seed file into a store that has never been written.
func seedIfEmpty(ctx context.Context, store storage.Store, config Config) (bool, error) {
	revision, err := store.Revision(ctx)
	if err != nil {
		return false, fmt.Errorf("read revision: %w", err)
	}
	if revision > 0 {
		return false, nil
	}
	ds, err := loadSeed(config)
	if err != nil {
		return false, err
	}
	if err := store.Replace(ctx, ds); err != nil {
		return false, fmt.Errorf("seed store: %w", err)
	}
	return true, nil
}
