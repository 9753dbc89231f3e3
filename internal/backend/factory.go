package backend

import (
	"context"
	"fmt"

	applog "expenses/internal/log"
	"expenses/internal/session"
	"expenses/internal/storage"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentSession)}
}

// CreateStore implements Factory.CreateStore.
func (f *DefaultFactory) CreateStore(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(cfg)
	case MemoryBackend:
		return f.createMemoryStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

// createSQLiteStore puts a read cache in front of the database so the
// per-request session lookup rarely touches disk.
func (f *DefaultFactory) createSQLiteStore(cfg Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite session store: %w", err)
	}

	f.logger.Info("Initialized SQLite session store", "db_path", cfg.SQLiteDBPath)

	return &Result{
		Store:   session.NewCachedStore(repo, cfg.MaxSessions, cfg.TTL),
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryStore(cfg Config) (*Result, error) {
	store := session.NewMemoryStore(cfg.MaxSessions, cfg.TTL)

	f.logger.Info("Initialized memory session store", "max_sessions", cfg.MaxSessions)

	return &Result{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}
