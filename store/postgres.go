package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/users"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps users and sessions in PostgreSQL through the pgx
// database/sql driver.
type PostgresStore struct {
	DB *sql.DB
}

var (
	_ users.Store    = (*PostgresStore)(nil)
	_ sessions.Store = (*PostgresStore)(nil)
)

// OpenPostgres connects using dsn and applies the schema migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(ctx, db, goose.DialectPostgres, "migrations/postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an already migrated database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (pg *PostgresStore) Close() error {
	return pg.DB.Close()
}

func (pg *PostgresStore) CreateUser(ctx context.Context, u *users.User) error {
	now := time.Now().UTC()
	newUserQuery := `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
		`
	err := pg.DB.QueryRowContext(ctx, newUserQuery, u.Username, u.Email, u.PasswordHash, now).Scan(&u.ID)
	if err != nil {
		return pgUserError(err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (pg *PostgresStore) UpdateUser(ctx context.Context, u *users.User) error {
	now := time.Now().UTC()
	updateUserQuery := `
		UPDATE users
		SET email = $1, password_hash = $2, updated_at = $3
		WHERE id = $4
		`
	res, err := pg.DB.ExecContext(ctx, updateUserQuery, u.Email, u.PasswordHash, now, u.ID)
	if err != nil {
		return pgUserError(err)
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

func (pg *PostgresStore) LoadUserByID(ctx context.Context, id int64) (users.User, error) {
	row := pg.DB.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanPostgresUser(row)
}

func (pg *PostgresStore) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (users.User, error) {
	row := pg.DB.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE username = $1 OR email = $2
		ORDER BY id LIMIT 1`, username, email)
	return scanPostgresUser(row)
}

func scanPostgresUser(row *sql.Row) (users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return users.User{}, users.ErrUserNotFound
	}
	if err != nil {
		return users.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// pgUserError maps unique violations to users.ErrUserAlreadyExists.
func pgUserError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errors.Join(users.ErrUserAlreadyExists, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func (pg *PostgresStore) SaveSession(ctx context.Context, session sessions.Session) error {
	newSessionQuery := `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		`
	_, err := pg.DB.ExecContext(ctx, newSessionQuery, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (pg *PostgresStore) LoadSessionByID(ctx context.Context, id string) (sessions.Session, error) {
	session := sessions.Session{ID: id}
	query := `SELECT user_id, created_at, expires_at FROM sessions WHERE id = $1`
	err := pg.DB.QueryRowContext(ctx, query, id).Scan(&session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

func (pg *PostgresStore) DeleteSessionByID(ctx context.Context, id string) error {
	result, err := pg.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
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

func (pg *PostgresStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := pg.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return result.RowsAffected()
}
