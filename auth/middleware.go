package auth

import (
	"errors"
	"net/http"

	"github.com/cameronmore/go-weather/httperr"
	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/users"
)

// LoadSession attaches the session's user to the request context. Requests
// without a usable session continue anonymously; a cookie that points at an
// invalid, expired or orphaned session is cleared. Storage failures are 500s.
func (ac *AuthContext) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		s, err := ac.Sessions.Resolve(ctx, r)
		if err != nil {
			if !sessions.IsAnonymous(err) {
				ac.errs.Write(w, r, httperr.Internal(err, "Something went wrong!", ""))
				return
			}
			if !errors.Is(err, sessions.ErrNoSession) {
				ac.Log.Debug(ctx, "discarding session cookie", "reason", err)
				http.SetCookie(w, ac.Sessions.ClearCookie())
			}
			next.ServeHTTP(w, r)
			return
		}

		u, err := ac.Users.UserByID(ctx, s.UserID)
		if errors.Is(err, users.ErrUserNotFound) {
			ac.Log.Warn(ctx, "session references missing user", "user_id", s.UserID)
			http.SetCookie(w, ac.Sessions.ClearCookie())
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			ac.errs.Write(w, r, httperr.Internal(err, "Something went wrong!", ""))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(ctx, u)))
	})
}

// RequireAuth rejects anonymous requests with 401. It never redirects.
func (ac *AuthContext) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			ac.errs.Write(w, r, httperr.Authentication(
				"Authentication required",
				"Please log in to access this resource",
			))
			return
		}
		next.ServeHTTP(w, r)
	})
}
