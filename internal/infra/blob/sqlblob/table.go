// Package sqlblob persists blobs as rows of a single SQL table. The sqlite and
// postgres drivers share it and differ only in dialect.
package sqlblob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"rosterkit/internal/blob/core"
)

// Dialect captures the SQL differences between engines.
type Dialect struct {
	Driver      core.Driver
	PayloadType string
	// Bind renders the n-th (1-based) placeholder.
	Bind func(n int) string
}

// SQLite binds with '?'.
var SQLite = Dialect{
	Driver:      core.DriverSQLite,
	PayloadType: "BLOB",
	Bind:        func(int) string { return "?" },
}

// Postgres binds with '$n'.
var Postgres = Dialect{
	Driver:      core.DriverPostgres,
	PayloadType: "BYTEA",
	Bind:        func(n int) string { return fmt.Sprintf("$%d", n) },
}

const columns = "blob_key, payload, content_type, etag, metadata, updated_at"

// Table implements core.Store on a *sql.DB.
type Table struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
	now     func() time.Time
}

// New wraps db. Call EnsureSchema before first use.
func New(db *sql.DB, dialect Dialect) *Table {
	return &Table{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the blobs table when missing.
func (t *Table) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS blobs (
		blob_key TEXT PRIMARY KEY,
		payload ` + t.dialect.PayloadType + ` NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		etag TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL
	)`
	if _, err := t.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create blobs table: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for integration tests.
func (t *Table) DB() *sql.DB { return t.db }

// Close closes the database handle.
func (t *Table) Close() error { return t.db.Close() }

func (t *Table) Driver() core.Driver { return t.dialect.Driver }

func (t *Table) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	md := ""
	if len(opts.Metadata) > 0 {
		raw, err := json.Marshal(opts.Metadata)
		if err != nil {
			return core.Info{}, fmt.Errorf("marshal metadata: %w", err)
		}
		md = string(raw)
	}
	sum := sha256.Sum256(data)
	now := t.now()
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: now,
	}
	b := t.dialect.Bind
	stmt := `INSERT INTO blobs(` + columns + `) VALUES(` +
		strings.Join([]string{b(1), b(2), b(3), b(4), b(5), b(6)}, ",") +
		`) ON CONFLICT(blob_key) DO UPDATE SET payload=excluded.payload, content_type=excluded.content_type, etag=excluded.etag, metadata=excluded.metadata, updated_at=excluded.updated_at`
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.db.ExecContext(ctx, stmt, key, data, opts.ContentType, info.ETag, md, now.UnixNano()); err != nil {
		return core.Info{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	return info, nil
}

func (t *Table) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+columns+` FROM blobs WHERE blob_key = `+t.dialect.Bind(1), key)
	info, data, err := scanBlob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Info{}, nil, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("select %s: %w", key, err)
	}
	return info, io.NopCloser(bytes.NewReader(data)), nil
}

func (t *Table) Head(ctx context.Context, key string) (core.Info, error) {
	info, _, err := t.Get(ctx, key)
	return info, err
}

func (t *Table) Delete(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, err := t.db.ExecContext(ctx, `DELETE FROM blobs WHERE blob_key = `+t.dialect.Bind(1), key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List filters by prefix client side; LIKE escaping differs per engine and
// blob tables stay small.
func (t *Table) List(ctx context.Context, prefix string) ([]core.Info, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT `+columns+` FROM blobs`)
	if err != nil {
		return nil, fmt.Errorf("select blobs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var infos []core.Info
	for rows.Next() {
		info, _, err := scanBlob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blob: %w", err)
		}
		if strings.HasPrefix(info.Key, prefix) {
			infos = append(infos, info)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blobs: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBlob(s scanner) (core.Info, []byte, error) {
	var (
		info      core.Info
		data      []byte
		md        string
		updatedAt int64
	)
	if err := s.Scan(&info.Key, &data, &info.ContentType, &info.ETag, &md, &updatedAt); err != nil {
		return core.Info{}, nil, err
	}
	if md != "" {
		if err := json.Unmarshal([]byte(md), &info.Metadata); err != nil {
			return core.Info{}, nil, fmt.Errorf("decode metadata %s: %w", info.Key, err)
		}
	}
	info.Size = int64(len(data))
	info.LastModified = time.Unix(0, updatedAt).UTC()
	return info, data, nil
}
