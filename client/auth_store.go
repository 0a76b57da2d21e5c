package client

import (
	"context"
	"sync"
)

type AuthState struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// AuthStore mirrors the server session. It starts in the loading state until
// CheckAuth has run.
type AuthStore struct {
	api  *API
	subs subscribers[AuthState]

	mu    sync.Mutex
	state AuthState
}

func NewAuthStore(api *API) *AuthStore {
	return &AuthStore{
		api:   api,
		state: AuthState{IsLoading: true},
	}
}

func (s *AuthStore) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called with the new state after every change.
// The returned function unsubscribes.
func (s *AuthStore) Subscribe(fn func(AuthState)) func() {
	return s.subs.add(fn)
}

func (s *AuthStore) update(fn func(st *AuthState)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()
	s.subs.notify(snapshot)
}

// CheckAuth hydrates the state from the server's current-user endpoint. A
// failed check leaves the store anonymous without setting Error.
func (s *AuthStore) CheckAuth(ctx context.Context) bool {
	s.update(func(st *AuthState) { st.IsLoading = true })

	u, err := s.api.Me(ctx)
	s.update(func(st *AuthState) {
		st.IsLoading = false
		if err != nil {
			st.User = nil
			st.IsAuthenticated = false
			return
		}
		st.User = &u
		st.IsAuthenticated = true
	})
	return err == nil
}

func (s *AuthStore) Login(ctx context.Context, username, password string) error {
	return s.authenticate("Login failed", func() (AuthResponse, error) {
		return s.api.Login(ctx, username, password)
	})
}

func (s *AuthStore) Register(ctx context.Context, username, email, password string) error {
	return s.authenticate("Registration failed", func() (AuthResponse, error) {
		return s.api.Register(ctx, username, email, password)
	})
}

func (s *AuthStore) authenticate(fallback string, call func() (AuthResponse, error)) error {
	s.update(func(st *AuthState) {
		st.Error = ""
		st.IsLoading = true
	})

	resp, err := call()
	s.update(func(st *AuthState) {
		st.IsLoading = false
		if err != nil {
			st.User = nil
			st.IsAuthenticated = false
			st.Error = UserMessage(err, fallback)
			return
		}
		st.User = &resp.User
		st.IsAuthenticated = true
	})
	return err
}

// Logout ends the session. The store is anonymous afterwards even if the
// server call failed.
func (s *AuthStore) Logout(ctx context.Context) error {
	s.update(func(st *AuthState) {
		st.Error = ""
		st.IsLoading = true
	})

	err := s.api.Logout(ctx)
	s.update(func(st *AuthState) {
		st.IsLoading = false
		st.User = nil
		st.IsAuthenticated = false
		if err != nil {
			st.Error = UserMessage(err, "Logout failed")
		}
	})
	return err
}

func (s *AuthStore) ClearError() {
	s.update(func(st *AuthState) { st.Error = "" })
}
