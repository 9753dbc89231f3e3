// Package ratelimit throttles requests per client with a fixed one-minute
// window.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Limiter counts requests per key. Stale keys are dropped by CleanExpired,
// which the cache manager calls on its ticker.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	limit   int
	idle    time.Duration
	now     func() time.Time
	hits    atomic.Int64
}

type clientInfo struct {
	windowStart time.Time
	lastSeen    time.Time
	requests    int
}

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	// IdleTimeout is how long an unseen client is remembered.
	IdleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60, IdleTimeout: 10 * time.Minute}
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	return &Limiter{
		clients: make(map[string]*clientInfo),
		limit:   cfg.RequestsPerMinute,
		idle:    cfg.IdleTimeout,
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		l.clients[key] = &clientInfo{windowStart: now, lastSeen: now, requests: 1}
		return true
	}
	c.lastSeen = now
	if now.Sub(c.windowStart) >= window {
		c.windowStart = now
		c.requests = 1
		return true
	}
	c.requests++
	if c.requests > l.limit {
		l.hits.Add(1)
		return false
	}
	return true
}

// retryAfter is the time left in key's current window.
func (l *Limiter) retryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[key]
	if !ok {
		return 0
	}
	return window - l.now().Sub(c.windowStart)
}

// CleanExpired forgets clients idle longer than the idle timeout.
func (l *Limiter) CleanExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Hits returns how many requests were rejected.
func (l *Limiter) Hits() int64 {
	return l.hits.Load()
}

// Mutating reports whether the request changes state. Reads are not limited.
func Mutating(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// Middleware limits requests selected by applies, keyed by extractKey.
// onLimit writes the rejection; nil sends a plain 429.
func (l *Limiter) Middleware(extractKey func(*http.Request) string, applies func(*http.Request) bool, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if applies != nil && !applies(r) {
				next.ServeHTTP(w, r)
				return
			}
			key := extractKey(r)
			if !l.Allow(key) {
				secs := max(int(math.Ceil(l.retryAfter(key).Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
