// Package database provides SQLite access and migration management for the
// command registry, test results, and audit trail.
package database

import (
	"database/sql"
	"os"
	"path/filepath"

	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection.
type DB struct {
	*sql.DB
}

// New opens the database at dbPath, creating the parent directory if
// needed.
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// NewMemory opens an in-memory database, used by tests.
func NewMemory() (*DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	return &DB{db}, nil
}

// Migrate runs all schema migrations.
func (db *DB) Migrate() error {
	return runMigrations(db.DB)
}
