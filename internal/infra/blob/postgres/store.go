// Package postgres stores blobs in a PostgreSQL table through pgx's
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"rosterkit/internal/infra/blob/sqlblob"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/rosterkit?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a sqlblob.Table opened on a Postgres database.
type Store struct {
	*sqlblob.Table
}

// Open connects using dsn (falls back to defaultDSN), pings and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	table := sqlblob.New(db, sqlblob.Postgres)
	if err := table.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Table: table}, nil
}

// OpenFromEnv reads ROSTER_BLOB_POSTGRES_DSN.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	return Open(ctx, os.Getenv("ROSTER_BLOB_POSTGRES_DSN"))
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
