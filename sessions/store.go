// Package sessions implements server-side sessions referenced by a signed,
// opaque id held in a cookie.
package sessions

import (
	"context"
	"time"
)

// Session maps an opaque id to a user until ExpiresAt.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Store interface {
	SaveSession(ctx context.Context, s Session) error
	// LoadSessionByID returns ErrSessionNotFound for unknown ids.
	LoadSessionByID(ctx context.Context, id string) (Session, error)
	// DeleteSessionByID returns ErrSessionNotFound when nothing was deleted.
	DeleteSessionByID(ctx context.Context, id string) error
	// DeleteExpiredSessions removes sessions that expired at or before now and
	// reports how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
