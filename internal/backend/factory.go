package backend

import (
	"context"
	"fmt"
	"log/slog"

	"planora/internal/store"
	"planora/internal/store/memory"
	"planora/internal/store/postgres"
	"planora/internal/store/sqlite"
)

// Result bundles an initialized store with its cleanup function. Cleanup
// may be nil when the backend has nothing to release.
type Result struct {
	Store   store.Store
	Cleanup func() error
}

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Create initializes the store described by config.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLite(config)
	case PostgresBackend:
		return f.createPostgres(ctx, config)
	case MemoryBackend:
		return f.createMemory()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *Factory) createSQLite(config Config) (*Result, error) {
	repo, err := sqlite.New(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func (f *Factory) createPostgres(ctx context.Context, config Config) (*Result, error) {
	repo, err := postgres.New(ctx, config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")

	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func (f *Factory) createMemory() (*Result, error) {
	f.logger.Info("Initialized memory backend")

	return &Result{Store: memory.New(), Cleanup: nil}, nil
}
