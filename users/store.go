package users

import "context"

// Store persists users. Usernames and emails are stored normalized and are
// unique; implementations rely on the database constraint and report a
// violation as ErrUserAlreadyExists.
type Store interface {
	// CreateUser inserts u and fills in ID, CreatedAt and UpdatedAt.
	CreateUser(ctx context.Context, u *User) error
	// UpdateUser writes email and password hash of u and refreshes UpdatedAt.
	UpdateUser(ctx context.Context, u *User) error
	LoadUserByID(ctx context.Context, id int64) (User, error)
	// FindUserByUsernameOrEmail returns the first user whose username equals
	// username or whose email equals email. ErrUserNotFound if none.
	FindUserByUsernameOrEmail(ctx context.Context, username, email string) (User, error)
}
