package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/users"
)

// SQLiteStore keeps users and sessions in a SQLite database. Timestamps are
// stored as Unix milliseconds.
type SQLiteStore struct {
	DB *sql.DB
}

var (
	_ users.Store    = (*SQLiteStore)(nil)
	_ sessions.Store = (*SQLiteStore)(nil)
)

// OpenSQLite opens the database file at path, enables foreign keys and a busy
// timeout, and applies the schema migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// mattn/go-sqlite3 does not support concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *users.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	newUserQuery := `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		`
	res, err := s.DB.ExecContext(ctx, newUserQuery, u.Username, u.Email, u.PasswordHash, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return sqliteUserError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *users.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	updateUserQuery := `
		UPDATE users
		SET email = ?, password_hash = ?, updated_at = ?
		WHERE id = ?
		`
	res, err := s.DB.ExecContext(ctx, updateUserQuery, u.Email, u.PasswordHash, now.UnixMilli(), u.ID)
	if err != nil {
		return sqliteUserError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return users.ErrUserNotFound
	}
	u.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) LoadUserByID(ctx context.Context, id int64) (users.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?`, id)
	return scanSQLiteUser(row)
}

func (s *SQLiteStore) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (users.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE username = ? OR email = ?
		ORDER BY id LIMIT 1`, username, email)
	return scanSQLiteUser(row)
}

func scanSQLiteUser(row *sql.Row) (users.User, error) {
	var (
		u                    users.User
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return users.User{}, users.ErrUserNotFound
	}
	if err != nil {
		return users.User{}, fmt.Errorf("db error: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	u.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return u, nil
}

// sqliteUserError maps unique-constraint violations to users.ErrUserAlreadyExists.
func sqliteUserError(err error) error {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.Join(users.ErrUserAlreadyExists, err)
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func (s *SQLiteStore) SaveSession(ctx context.Context, session sessions.Session) error {
	newSessionQuery := `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		`
	_, err := s.DB.ExecContext(ctx, newSessionQuery,
		session.ID, session.UserID, session.CreatedAt.UnixMilli(), session.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSessionByID(ctx context.Context, id string) (sessions.Session, error) {
	session := sessions.Session{ID: id}
	var createdAt, expiresAt int64
	query := `SELECT user_id, created_at, expires_at FROM sessions WHERE id = ?`
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&session.UserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("db error: %w", err)
	}
	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	session.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return session, nil
}

func (s *SQLiteStore) DeleteSessionByID(ctx context.Context, id string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sessions.ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return result.RowsAffected()
}
