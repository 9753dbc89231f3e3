package session

import (
	"context"
	"time"

	"expenses/internal/cache"
)

// CachedStore puts an LRU in front of a slower Store. Writes go through to
// both; reads hit the backing store only on a miss.
type CachedStore struct {
	backing Store
	lru     *cache.LRUCache[Session]
}

func NewCachedStore(backing Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{backing: backing, lru: cache.NewLRUCache[Session](size, ttl)}
}

func (c *CachedStore) Get(ctx context.Context, id string) (Session, error) {
	if s, ok := c.lru.Get(id); ok && !s.Expired(time.Now()) {
		return s, nil
	}
	s, err := c.backing.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	c.lru.SetUntil(id, s, s.ExpiresAt)
	return s, nil
}

func (c *CachedStore) Save(ctx context.Context, s Session) error {
	if err := c.backing.Save(ctx, s); err != nil {
		c.lru.Delete(s.ID)
		return err
	}
	c.lru.SetUntil(s.ID, s, s.ExpiresAt)
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	c.lru.Delete(id)
	return c.backing.Delete(ctx, id)
}

func (c *CachedStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	c.lru.CleanExpired()
	return c.backing.DeleteExpired(ctx, now)
}

func (c *CachedStore) Close() error {
	return c.backing.Close()
}
