package users

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// PasswordCost is the bcrypt work factor for stored hashes.
	PasswordCost = 12

	MinPasswordLength = 6
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

// ErrPasswordTooShort is wrapped by the ValidationError returned for short passwords.
var ErrPasswordTooShort = errors.New("password too short")

// ValidatePassword checks the plaintext password length rules.
func ValidatePassword(password string) error {
	if password == "" {
		return &ValidationError{Field: "Password", Message: "Password is required"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{
			Field:   "Password",
			Message: fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength),
			Err:     ErrPasswordTooShort,
		}
	}
	if len(password) > MaxPasswordBytes {
		return &ValidationError{
			Field:   "Password",
			Message: fmt.Sprintf("Password must be at most %d bytes long", MaxPasswordBytes),
		}
	}
	return nil
}

// SetPassword validates the plaintext and replaces the stored hash. It is the
// only way a password reaches a User, so the field always holds a hash.
func (u *User) SetPassword(password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	h, err := hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = h
	return nil
}

// ComparePassword reports whether candidate matches the stored hash.
func (u User) ComparePassword(candidate string) bool {
	return passwordIsEquivalent(candidate, u.PasswordHash)
}

func hash(password string) (string, error) {
	bts, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(bts), nil
}

func passwordIsEquivalent(password string, hashedPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnCompare spends roughly the time of a real comparison so that unknown
// usernames and wrong passwords are indistinguishable by latency.
func burnCompare(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = hash("not-a-real-password")
	})
	_ = passwordIsEquivalent(password, dummyHash)
}
