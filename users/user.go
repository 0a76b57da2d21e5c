// Package users holds the user model, its validation and password handling,
// the persistence contract, and the service used by the auth endpoints.
package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username" validate:"required,min=3,max=50"`
	Email        string    `json:"email" validate:"required,max=100,email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeIdentifier trims and lower-cases a username or email so that
// uniqueness and lookups are case-insensitive.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewUser normalizes and validates the fields and hashes the password. The
// returned user is ready to be handed to Store.CreateUser.
func NewUser(username, email, password string) (User, error) {
	u := User{
		Username: NormalizeIdentifier(username),
		Email:    NormalizeIdentifier(email),
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	if err := u.SetPassword(password); err != nil {
		return User{}, err
	}
	return u, nil
}

// Validate checks the username and email fields.
func (u User) Validate() error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate user: %w", err)
	}
	return fieldError(verrs[0])
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: field + " is required"}
	case "email":
		return &ValidationError{Field: field, Message: field + " must be a valid email address"}
	case "min", "max":
		if field == "Username" {
			return &ValidationError{Field: field, Message: "Username must be between 3 and 50 characters"}
		}
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %s characters", field, fe.Param())}
	}
	return &ValidationError{Field: field, Message: field + " is invalid"}
}
