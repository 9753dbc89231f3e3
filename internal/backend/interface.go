// Package backend builds the session store selected by configuration.
package backend

import (
	"context"
	"time"

	"expenses/internal/session"
)

// CleanupFunc releases a backend's resources.
type CleanupFunc func() error

// Result is a ready store plus what the caller needs to run and stop it.
type Result struct {
	Store session.Store
	// Ping checks the backing storage; nil when there is nothing to check.
	Ping    func(context.Context) error
	Cleanup CleanupFunc
}

// Factory creates session stores.
type Factory interface {
	CreateStore(ctx context.Context, cfg Config) (*Result, error)
}

// Config holds what store creation needs.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// MaxSessions bounds the in-memory store and the read cache in front
	// of sqlite.
	MaxSessions int
	TTL         time.Duration
}

// BackendType names a session store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is known.
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
