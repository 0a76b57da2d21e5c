// Package store provides SQLite and PostgreSQL implementations of the user
// and session stores, with embedded goose migrations.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/users"
)

// Supported values for the database driver setting.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

//go:embed migrations
var migrations embed.FS

// Store is a database holding both users and sessions.
type Store interface {
	users.Store
	sessions.Store
	Close() error
}

// Open connects to the configured database and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// migrate applies the embedded migrations found under dir.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return err
	}
	return nil
}
