package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

var errRejected = errors.New("rejected")

type fakeVerifier struct {
	user  core.User
	err   error
	calls int
}

func (f *fakeVerifier) Me(ctx context.Context, token string) (core.User, error) {
	f.calls++
	return f.user, f.err
}

func isRejected(err error) bool { return errors.Is(err, errRejected) }

func newTestManager(t *testing.T, verifyEvery time.Duration) (*Manager, *MemoryStore, *time.Time) {
	t.Helper()
	store := NewMemoryStore(100, 24*time.Hour)
	m := NewManager(store, Config{TTL: time.Hour, VerifyInterval: verifyEvery}, nil)
	now := time.Now()
	m.now = func() time.Time { return now }
	m.newID = func() string { return "session-id-0001" }
	return m, store, &now
}

// startSession logs in and returns a request carrying the resulting cookie.
func startSession(t *testing.T, m *Manager, token string) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	_, err := m.Start(context.Background(), rec, token, core.User{ID: 7, Username: "ana"})
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	return req
}

func TestStartAndLoad(t *testing.T) {
	m, _, _ := newTestManager(t, time.Minute)
	req := startSession(t, m, "opaque-token")

	s, err := m.Load(req)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", s.Token)
	assert.Equal(t, int64(7), s.User.ID)

	_, err = m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndClearsSession(t *testing.T) {
	m, store, _ := newTestManager(t, time.Minute)
	req := startSession(t, m, "tok")

	rec := httptest.NewRecorder()
	ended, ok := m.End(context.Background(), rec, req)
	require.True(t, ok)
	assert.Equal(t, "tok", ended.Token)

	_, err := store.Get(context.Background(), "session-id-0001")
	assert.ErrorIs(t, err, ErrNotFound)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestBootstrapVerifiesWhenDue(t *testing.T) {
	m, _, now := newTestManager(t, 5*time.Minute)
	req := startSession(t, m, "tok")
	v := &fakeVerifier{user: core.User{ID: 7, Username: "ana-renamed"}}

	_, err := m.Bootstrap(httptest.NewRecorder(), req, v, isRejected)
	require.NoError(t, err)
	assert.Equal(t, 0, v.calls, "freshly started session needs no /me call")

	*now = now.Add(6 * time.Minute)
	s, err := m.Bootstrap(httptest.NewRecorder(), req, v, isRejected)
	require.NoError(t, err)
	assert.Equal(t, 1, v.calls)
	assert.Equal(t, "ana-renamed", s.User.Username)

	_, err = m.Bootstrap(httptest.NewRecorder(), req, v, isRejected)
	require.NoError(t, err)
	assert.Equal(t, 1, v.calls, "verification timestamp was stored")
}

func TestBootstrapRejectedTokenEndsSession(t *testing.T) {
	m, store, _ := newTestManager(t, 0)
	req := startSession(t, m, "tok")
	v := &fakeVerifier{err: errRejected}

	rec := httptest.NewRecorder()
	_, err := m.Bootstrap(rec, req, v, isRejected)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "session-id-0001")
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "", rec.Result().Cookies()[0].Value)
}

func TestBootstrapTransientErrorKeepsSession(t *testing.T) {
	m, store, _ := newTestManager(t, 0)
	req := startSession(t, m, "tok")
	v := &fakeVerifier{err: errors.New("connection refused")}

	_, err := m.Bootstrap(httptest.NewRecorder(), req, v, isRejected)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "session-id-0001")
	assert.NoError(t, err)
}

func TestSessionExpiresWithToken(t *testing.T) {
	m, _, now := newTestManager(t, time.Hour)
	exp := now.Add(10 * time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": exp.Unix(),
	}).SignedString([]byte("not-our-key"))
	require.NoError(t, err)

	req := startSession(t, m, token)
	s, err := m.Load(req)
	require.NoError(t, err)
	assert.True(t, s.ExpiresAt.Equal(exp), "session capped at token expiry")

	*now = now.Add(11 * time.Minute)
	_, err = m.Load(req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartRejectsExpiredToken(t *testing.T) {
	m, _, now := newTestManager(t, time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(-time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = m.Start(context.Background(), httptest.NewRecorder(), token, core.User{ID: 1})
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	_, ok := TokenExpiry("opaque")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)

	now := time.Now()
	assert.Equal(t, now.Add(time.Hour), Expiry("opaque", now, time.Hour))
}

func TestSweep(t *testing.T) {
	m, store, _ := newTestManager(t, time.Hour)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(context.Background(), Session{ID: "x", ExpiresAt: past.Add(time.Millisecond)}))
	assert.GreaterOrEqual(t, m.Sweep(), 0)
	_, err := store.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore(t *testing.T) {
	backing := NewMemoryStore(10, time.Hour)
	c := NewCachedStore(backing, 10, time.Minute)
	ctx := context.Background()
	s := Session{ID: "a", Token: "t", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, c.Save(ctx, s))
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "t", got.Token)

	require.NoError(t, backing.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err, "served from cache")

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.DeleteExpired(ctx, time.Now())
	assert.NoError(t, err)
	assert.NoError(t, c.Close())
}
