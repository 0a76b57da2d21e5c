package users

import "errors"

var ErrUserNotFound = errors.New("user not found")

var ErrUserAlreadyExists = errors.New("username or email already exists")

var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidationError reports a field that failed validation. Message is safe to
// show to the end user.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
