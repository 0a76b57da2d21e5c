package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/users"
)

func newPostgresWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresStore(db), mock
}

var userColumns = []string{"id", "username", "email", "password_hash", "created_at", "updated_at"}

func TestPostgres_CreateUser(t *testing.T) {
	pg, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password_hash,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$4\)\s*RETURNING\s+id\s*$`).
		WithArgs("alice", "alice@x.com", "hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	u := &users.User{Username: "alice", Email: "alice@x.com", PasswordHash: "hash"}
	require.NoError(t, pg.CreateUser(context.Background(), u))
	assert.Equal(t, int64(42), u.ID)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestPostgres_CreateUser_UniqueViolation(t *testing.T) {
	pg, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := pg.CreateUser(context.Background(), &users.User{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, users.ErrUserAlreadyExists)
}

func TestPostgres_CreateUser_DBError(t *testing.T) {
	pg, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	err := pg.CreateUser(context.Background(), &users.User{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, users.ErrUserAlreadyExists)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestPostgres_FindUserByUsernameOrEmail(t *testing.T) {
	pg, mock := newPostgresWithMock(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*username,\s*email,\s*password_hash,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+OR\s+email\s*=\s*\$2`).
		WithArgs("alice", "alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(1), "alice", "alice@x.com", "hash", created, created))

	u, err := pg.FindUserByUsernameOrEmail(context.Background(), "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.True(t, created.Equal(u.CreatedAt))
}

func TestPostgres_LoadUserByID_NotFound(t *testing.T) {
	pg, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := pg.LoadUserByID(context.Background(), 7)
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestPostgres_UpdateUser(t *testing.T) {
	pg, mock := newPostgresWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+email\s*=\s*\$1,\s*password_hash\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$4`).
		WithArgs("new@x.com", "hash2", sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+users`).
		WithArgs("new@x.com", "hash2", sqlmock.AnyArg(), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	u := &users.User{ID: 1, Email: "new@x.com", PasswordHash: "hash2"}
	require.NoError(t, pg.UpdateUser(context.Background(), u))
	assert.False(t, u.UpdatedAt.IsZero())

	u.ID = 2
	assert.ErrorIs(t, pg.UpdateUser(context.Background(), u), users.ErrUserNotFound)
}

func TestPostgres_SaveAndLoadSession(t *testing.T) {
	pg, mock := newPostgresWithMock(t)
	now := time.Now().UTC()
	s := sessions.Session{ID: "sid", UserID: 3, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+sessions\s*\(id,\s*user_id,\s*created_at,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)`).
		WithArgs("sid", int64(3), now, s.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT\s+user_id,\s*created_at,\s*expires_at\s+FROM\s+sessions\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("sid").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "expires_at"}).AddRow(int64(3), now, s.ExpiresAt))
	mock.ExpectQuery(`FROM\s+sessions`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	require.NoError(t, pg.SaveSession(context.Background(), s))

	got, err := pg.LoadSessionByID(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = pg.LoadSessionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestPostgres_DeleteSessions(t *testing.T) {
	pg, mock := newPostgresWithMock(t)
	now := time.Now()

	mock.ExpectExec(`DELETE\s+FROM\s+sessions\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("sid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+sessions\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE\s+FROM\s+sessions\s+WHERE\s+expires_at\s*<=\s*\$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 5))

	require.NoError(t, pg.DeleteSessionByID(context.Background(), "sid"))
	assert.ErrorIs(t, pg.DeleteSessionByID(context.Background(), "gone"), sessions.ErrSessionNotFound)

	n, err := pg.DeleteExpiredSessions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
