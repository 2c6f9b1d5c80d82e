// Package sqlite stores the scan history in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kozaktomas/samephoto/internal/config"
	"github.com/kozaktomas/samephoto/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	database.RegisterBackend(database.BackendSQLite, func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		return Open(ctx, cfg)
	})
}

// Path extracts the database file path from sqlite://path or a bare path.
func Path(url string) (string, error) {
	path := url
	if strings.HasPrefix(strings.ToLower(path), "sqlite://") {
		path = database.TrimScheme(path)
	}
	if path == "" {
		return "", errors.New("SQLite database path is required")
	}
	return path, nil
}

// Open opens (creating if needed) the SQLite database, runs migrations and
// returns the run store.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*database.SQLRunStore, error) {
	path, err := Path(cfg.URL)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	if _, err := database.Migrate(ctx, db, database.SQLiteDialect, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database.NewSQLRunStore(db, database.SQLiteDialect), nil
}
