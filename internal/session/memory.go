package session

import (
	"context"
	"time"

	"expenses/internal/cache"
)

// MemoryStore keeps sessions in a bounded LRU. Sessions are lost on restart.
type MemoryStore struct {
	items *cache.LRUCache[Session]
}

// NewMemoryStore holds at most maxSessions; each entry lives until its
// ExpiresAt, capped at maxTTL.
func NewMemoryStore(maxSessions int, maxTTL time.Duration) *MemoryStore {
	return &MemoryStore{items: cache.NewLRUCache[Session](maxSessions, maxTTL)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s, ok := m.items.Get(id)
	if !ok || s.Expired(time.Now()) {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.items.SetUntil(s.ID, s, s.ExpiresAt)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.items.Delete(id)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return m.items.CleanExpired(), nil
}

func (m *MemoryStore) Close() error { return nil }
