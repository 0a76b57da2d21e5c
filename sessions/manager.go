package sessions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultDuration is the session lifetime used when none is configured.
const DefaultDuration = 24 * time.Hour

// Manager creates, resolves and destroys sessions against a Store and issues
// the matching cookies.
type Manager struct {
	store    Store
	secret   string
	duration time.Duration
	secure   bool
	now      func() time.Time
}

// NewManager refuses secrets shorter than MinSecretLength. A zero duration
// means DefaultDuration. secure sets the Secure attribute on cookies.
func NewManager(store Store, secret string, duration time.Duration, secure bool) (*Manager, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Manager{
		store:    store,
		secret:   secret,
		duration: duration,
		secure:   secure,
		now:      time.Now,
	}, nil
}

func (m *Manager) Duration() time.Duration {
	return m.duration
}

// Create stores a new session for userID and returns it with its cookie.
func (m *Manager) Create(ctx context.Context, userID int64) (Session, *http.Cookie, error) {
	now := m.now()
	s := Session{
		ID:        newSessionID(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.duration),
	}
	if err := m.store.SaveSession(ctx, s); err != nil {
		return Session{}, nil, fmt.Errorf("save session: %w", err)
	}
	return s, newCookie(SignSessionID(s.ID, m.secret), s.ExpiresAt, m.secure), nil
}

// Resolve returns the live session referenced by the request cookie. An
// expired session is deleted and reported as ErrSessionExpired. Use
// IsAnonymous to tell "no usable session" apart from store failures.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (Session, error) {
	id, err := SessionIDFromRequest(r, m.secret)
	if err != nil {
		return Session{}, err
	}

	s, err := m.store.LoadSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}

	if s.Expired(m.now()) {
		if err := m.store.DeleteSessionByID(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return Session{}, fmt.Errorf("delete expired session: %w", err)
		}
		return Session{}, ErrSessionExpired
	}
	return s, nil
}

// Destroy deletes the session referenced by the request cookie, if any.
// Requests without a valid cookie and already deleted sessions are not errors.
func (m *Manager) Destroy(ctx context.Context, r *http.Request) error {
	id, err := SessionIDFromRequest(r, m.secret)
	if err != nil {
		return nil
	}
	if err := m.store.DeleteSessionByID(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ClearCookie returns a cookie that removes the session cookie client-side.
func (m *Manager) ClearCookie() *http.Cookie {
	return expiredCookie(m.secure)
}

// Sweep deletes every expired session.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeleteExpiredSessions(ctx, m.now())
}

// IsAnonymous reports whether err only means the request carries no usable
// session, as opposed to a storage failure.
func IsAnonymous(err error) bool {
	return errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrMalformedSessionID) ||
		errors.Is(err, ErrInvalidSessionSignature) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired)
}
