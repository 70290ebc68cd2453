// Package sqlite stores blobs in an embedded SQLite file through the pure-Go
// modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"rosterkit/internal/infra/blob/sqlblob"
)

const defaultPath = "rosterkit.db"

// Store is a sqlblob.Table opened on a SQLite file.
type Store struct {
	*sqlblob.Table
	path string
}

// Open creates parent directories, opens the file and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY on concurrent upserts
	db.SetMaxOpenConns(1)
	table := sqlblob.New(db, sqlblob.SQLite)
	if err := table.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Table: table, path: path}, nil
}

// OpenFromEnv reads ROSTER_BLOB_SQLITE_PATH.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	return Open(ctx, os.Getenv("ROSTER_BLOB_SQLITE_PATH"))
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
