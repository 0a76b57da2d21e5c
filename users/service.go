package users

import (
	"context"
	"errors"
	"fmt"
)

// Service implements registration, credential checks and credential updates
// on top of a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register validates the input, rejects a taken username or email, and
// persists a user built by NewUser. A concurrent registration that slips past
// the pre-check still fails with ErrUserAlreadyExists from the store.
func (s *Service) Register(ctx context.Context, username, email, password string) (User, error) {
	candidate := User{
		Username: NormalizeIdentifier(username),
		Email:    NormalizeIdentifier(email),
	}
	if err := candidate.Validate(); err != nil {
		return User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return User{}, err
	}

	_, err := s.store.FindUserByUsernameOrEmail(ctx, candidate.Username, candidate.Email)
	switch {
	case err == nil:
		return User{}, ErrUserAlreadyExists
	case !errors.Is(err, ErrUserNotFound):
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	u, err := NewUser(username, email, password)
	if err != nil {
		return User{}, err
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Authenticate checks the password against the user whose username equals
// identifier, then against the user whose email equals it. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (User, error) {
	ident := NormalizeIdentifier(identifier)

	found := false
	for _, by := range [][2]string{{ident, ""}, {"", ident}} {
		u, err := s.store.FindUserByUsernameOrEmail(ctx, by[0], by[1])
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			return User{}, fmt.Errorf("lookup user: %w", err)
		}
		found = true
		if u.ComparePassword(password) {
			return u, nil
		}
	}

	if !found {
		burnCompare(password)
	}
	return User{}, ErrInvalidCredentials
}

func (s *Service) UserByID(ctx context.Context, id int64) (User, error) {
	return s.store.LoadUserByID(ctx, id)
}

// Credentials lists the fields to change; nil means unchanged.
type Credentials struct {
	Email    *string
	Password *string
}

// UpdateCredentials changes email and/or password. The hash is recomputed
// only when a new password is supplied.
func (s *Service) UpdateCredentials(ctx context.Context, id int64, c Credentials) (User, error) {
	u, err := s.store.LoadUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if c.Email != nil {
		u.Email = NormalizeIdentifier(*c.Email)
		if err := u.Validate(); err != nil {
			return User{}, err
		}
	}
	if c.Password != nil {
		if err := u.SetPassword(*c.Password); err != nil {
			return User{}, err
		}
	}

	if err := s.store.UpdateUser(ctx, &u); err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}
