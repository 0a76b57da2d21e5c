// Package auth serves the registration, login, logout and current-user
// endpoints and the session middleware that guards the rest of the API.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/cameronmore/go-weather/httperr"
	"github.com/cameronmore/go-weather/logging"
	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/users"
)

// AuthContext ties the user service and session manager to the HTTP layer.
type AuthContext struct {
	Users    *users.Service
	Sessions *sessions.Manager
	Log      logging.Logger
	errs     *httperr.Responder
}

func NewAuthContext(svc *users.Service, mgr *sessions.Manager, log logging.Logger, errs *httperr.Responder) *AuthContext {
	return &AuthContext{
		Users:    svc,
		Sessions: mgr,
		Log:      log,
		errs:     errs,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Message string     `json:"message,omitempty"`
	User    users.User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// RegisterHandler creates a user and logs them in.
//
// The expected request to this endpoint is a JSON object with the form:
//
// { "username" : "VALUE", "email" : "VALUE", "password" : "PASSWORD" }
func (ac *AuthContext) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	ac.errs.Handle(ac.register)(w, r)
}

func (ac *AuthContext) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := httperr.DecodeJSON(r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return httperr.Validation("All fields are required", "")
	}

	ctx := r.Context()
	u, err := ac.Users.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return registrationError(err)
	}

	if err := ac.startSession(w, r, u.ID); err != nil {
		return httperr.Internal(err, "Login after registration failed", "")
	}

	ac.Log.Info(ctx, "user registered", "user_id", u.ID, "username", u.Username)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, userResponse{Message: "User registered successfully", User: u})
	return nil
}

func registrationError(err error) error {
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr) && errors.Is(err, users.ErrPasswordTooShort):
		return httperr.Validation(verr.Message, "")
	case errors.As(err, &verr):
		return httperr.Validation("Validation failed", verr.Message)
	case errors.Is(err, users.ErrUserAlreadyExists):
		return httperr.Conflict("Username or email already exists", "")
	default:
		return httperr.Internal(err, "Registration failed", "")
	}
}

// LoginHandler checks credentials and starts a new session. The username field
// may also hold the account's email address.
//
// The expected request to this endpoint is a JSON object with the form:
//
// { "username" : "VALUE", "password" : "PASSWORD" }
func (ac *AuthContext) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ac.errs.Handle(ac.login)(w, r)
}

func (ac *AuthContext) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := httperr.DecodeJSON(r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return httperr.Authentication("Login failed", "Missing credentials")
	}

	ctx := r.Context()
	u, err := ac.Users.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		ac.Log.Info(ctx, "login rejected", "username", users.NormalizeIdentifier(req.Username))
		return httperr.Authentication("Login failed", "Invalid credentials")
	}
	if err != nil {
		return httperr.Internal(err, "Authentication error", "")
	}

	// Rotate: the session the client arrived with must not outlive the login.
	if err := ac.Sessions.Destroy(ctx, r); err != nil {
		ac.Log.Warn(ctx, "could not delete previous session", "error", err)
	}
	if err := ac.startSession(w, r, u.ID); err != nil {
		return httperr.Internal(err, "Login failed", "")
	}

	ac.Log.Info(ctx, "user logged in", "user_id", u.ID)
	render.JSON(w, r, userResponse{Message: "Login successful", User: u})
	return nil
}

// LogoutHandler deletes the current session, if any, and clears the cookie.
// There is no expected request body for this endpoint.
func (ac *AuthContext) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	ac.errs.Handle(ac.logout)(w, r)
}

func (ac *AuthContext) logout(w http.ResponseWriter, r *http.Request) error {
	if err := ac.Sessions.Destroy(r.Context(), r); err != nil {
		return httperr.Internal(err, "Logout failed", "")
	}
	http.SetCookie(w, ac.Sessions.ClearCookie())
	render.JSON(w, r, messageResponse{Message: "Logout successful"})
	return nil
}

// MeHandler returns the user attached by LoadSession.
func (ac *AuthContext) MeHandler(w http.ResponseWriter, r *http.Request) {
	ac.errs.Handle(ac.me)(w, r)
}

func (ac *AuthContext) me(w http.ResponseWriter, r *http.Request) error {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return httperr.Authentication("Not authenticated", "")
	}
	render.JSON(w, r, userResponse{User: u})
	return nil
}

func (ac *AuthContext) startSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	_, cookie, err := ac.Sessions.Create(r.Context(), userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}

type ctxKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u users.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the user attached by LoadSession.
func UserFromContext(ctx context.Context) (users.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(users.User)
	return u, ok
}
