// Package sqlite provides the embedded single-file entity store backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/database/sqlstore"
)

// URLPrefix marks a DATABASE_URL that points at a SQLite file.
const URLPrefix = "sqlite:"

// PathFromURL strips the sqlite: prefix from a database URL.
func PathFromURL(url string) string {
	return strings.TrimPrefix(strings.TrimPrefix(url, URLPrefix), "//")
}

// Open opens (creating if needed) the database file at path and migrates it.
func Open(path string) (*sqlstore.Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Single writer: one connection serializes transactions.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlstore.New(db, sqlstore.SQLite), nil
}

// Initialize opens the database at path and registers it as the active
// storage backend.
func Initialize(path string) error {
	store, err := Open(path)
	if err != nil {
		return err
	}
	database.RegisterBackend("sqlite", func() database.Store {
		return store
	})
	return nil
}
