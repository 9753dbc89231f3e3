package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int) (*Limiter, *time.Time) {
	l := NewLimiter(Config{RequestsPerMinute: limit, IdleTimeout: 5 * time.Minute})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWindow(t *testing.T) {
	l, now := newTestLimiter(2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")
	assert.Equal(t, int64(1), l.Hits())

	*now = now.Add(window)
	assert.True(t, l.Allow("a"), "new window")
}

func TestCleanExpired(t *testing.T) {
	l, now := newTestLimiter(10)
	l.Allow("a")
	*now = now.Add(4 * time.Minute)
	l.Allow("b")
	*now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, l.CleanExpired())
	assert.Equal(t, 1, l.ActiveClients())
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := l.Middleware(func(*http.Request) string { return "client" }, Mutating, nil)(ok)

	serve := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/expenses", nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, serve(http.MethodPost).Code)
	rec := serve(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, serve(http.MethodGet).Code, "reads pass through")
}

func TestMiddlewareCustomRejection(t *testing.T) {
	l, _ := newTestLimiter(1)
	h := l.Middleware(
		func(*http.Request) string { return "c" },
		nil,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMutating(t *testing.T) {
	for _, m := range []string{http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodPut} {
		assert.True(t, Mutating(httptest.NewRequest(m, "/", nil)), m)
	}
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		assert.False(t, Mutating(httptest.NewRequest(m, "/", nil)), m)
	}
}
