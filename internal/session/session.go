// Package session keeps the API bearer token on the server side.
//
// The browser only ever holds an opaque session id cookie. The token, and the
// user it was issued for, live in a Store until logout, expiry, or the first
// time the expense service rejects the token.
package session

import (
	"context"
	"errors"
	"time"

	"expenses/internal/core"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Session is one logged-in browser.
type Session struct {
	ID         string
	Token      string
	User       core.User
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// NeedsVerify reports whether the token should be re-checked against /me.
// A zero interval means every request is checked.
func (s Session) NeedsVerify(now time.Time, interval time.Duration) bool {
	return s.VerifiedAt.IsZero() || now.Sub(s.VerifiedAt) >= interval
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions expired at now and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}
