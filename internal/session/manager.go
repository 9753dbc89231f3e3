package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

// DefaultCookieName is the name of the session id cookie.
const DefaultCookieName = "expenses_session"

// Verifier checks a token against the expense service (GET /me).
type Verifier interface {
	Me(ctx context.Context, token string) (core.User, error)
}

// Config holds Manager settings.
type Config struct {
	CookieName     string
	TTL            time.Duration
	VerifyInterval time.Duration
	Secure         bool
}

// Manager ties the session cookie to the Store.
type Manager struct {
	store  Store
	cfg    Config
	now    func() time.Time
	newID  func() string
	logger *applog.Logger
}

func NewManager(store Store, cfg Config, logger *applog.Logger) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.WithComponent(applog.ComponentSession),
	}
}

// Start creates a session for a freshly issued token and sets the cookie.
// The token was just accepted by the service, so it counts as verified.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, token string, user core.User) (Session, error) {
	now := m.now()
	s := Session{
		ID:         m.newID(),
		Token:      token,
		User:       user,
		CreatedAt:  now,
		ExpiresAt:  Expiry(token, now, m.cfg.TTL),
		VerifiedAt: now,
	}
	if !s.ExpiresAt.After(now) {
		return Session{}, fmt.Errorf("start session: token already expired")
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	m.setCookie(w, s.ID, s.ExpiresAt)
	m.logger.InfoContext(ctx, "Session started", applog.FieldUserID, user.ID, applog.FieldSessionID, shortID(s.ID))
	return s, nil
}

// Load returns the session named by the request cookie.
func (m *Manager) Load(r *http.Request) (Session, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return Session{}, ErrNotFound
	}
	s, err := m.store.Get(r.Context(), c.Value)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(r.Context(), s.ID)
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Bootstrap loads the session and, when due, re-checks the token with the
// verifier. A token the service rejects ends the session and clears the
// cookie; the caller then sends the user to the login page. Other verifier
// errors are returned as-is and leave the session in place.
func (m *Manager) Bootstrap(w http.ResponseWriter, r *http.Request, v Verifier, isUnauthorized func(error) bool) (Session, error) {
	s, err := m.Load(r)
	if err != nil {
		if _, cerr := r.Cookie(m.cfg.CookieName); cerr == nil && errors.Is(err, ErrNotFound) {
			m.clearCookie(w)
		}
		return Session{}, err
	}
	now := m.now()
	if v == nil || !s.NeedsVerify(now, m.cfg.VerifyInterval) {
		return s, nil
	}

	ctx := r.Context()
	user, err := v.Me(ctx, s.Token)
	if err != nil {
		if isUnauthorized != nil && isUnauthorized(err) {
			m.logger.InfoContext(ctx, "Token rejected, ending session",
				applog.FieldUserID, s.User.ID, applog.FieldSessionID, shortID(s.ID))
			_ = m.store.Delete(ctx, s.ID)
			m.clearCookie(w)
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("verify session: %w", err)
	}
	s.User = user
	s.VerifiedAt = now
	if err := m.store.Save(ctx, s); err != nil {
		m.logger.WarnContext(ctx, "Failed to record session verification", applog.FieldError, err.Error())
	}
	return s, nil
}

// End deletes the session and expires the cookie. It returns the session
// that was ended, if there was one, so the caller can revoke its token.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, r *http.Request) (Session, bool) {
	defer m.clearCookie(w)
	s, err := m.Load(r)
	if err != nil {
		return Session{}, false
	}
	if err := m.store.Delete(ctx, s.ID); err != nil {
		m.logger.WarnContext(ctx, "Failed to delete session", applog.FieldError, err.Error())
	}
	m.logger.InfoContext(ctx, "Session ended", applog.FieldUserID, s.User.ID, applog.FieldSessionID, shortID(s.ID))
	return s, true
}

// Sweep removes expired sessions from the store. It has the shape of
// cache.CleanerFunc so it can run on the cache manager's ticker.
func (m *Manager) Sweep() int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		m.logger.Warn("Session sweep failed", applog.FieldError, err.Error())
		return 0
	}
	return n
}

func (m *Manager) setCookie(w http.ResponseWriter, id string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// shortID keeps full session ids out of the logs.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
