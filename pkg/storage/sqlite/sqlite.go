// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeyshare.
//
// go-passkeyshare is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package sqlite provides a storage.Backend over a single SQLite file using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeremyhahn/go-passkeyshare/pkg/storage"
)

//go:embed schema.sql
var schema string

// Backend stores key-value pairs in a single kv table.
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite storage: path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: open: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers the way SQLite expects.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite storage: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite storage: apply schema: %w", err)
	}

	return &Backend{db: db, now: time.Now}, nil
}

// Get retrieves the value for the given key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, b.wrap("get", key, err)
	}
	return value, nil
}

// Put upserts the value for the given key.
func (b *Backend) Put(ctx context.Context, key string, value []byte, _ *storage.Options) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, toMillis(b.now()))
	if err != nil {
		return b.wrap("put", key, err)
	}
	return nil
}

// Create inserts the value only when the key is absent.
func (b *Backend) Create(ctx context.Context, key string, value []byte, _ *storage.Options) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
		key, value, toMillis(b.now()))
	if err != nil {
		return b.wrap("create", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return b.wrap("create", key, err)
	}
	if n == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

// Delete removes the key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return b.wrap("delete", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return b.wrap("delete", key, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns keys starting with prefix in sorted order.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM kv WHERE instr(key, ?) = 1 ORDER BY key`, prefix)
	if err != nil {
		return nil, b.wrap("list", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, b.wrap("list", prefix, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap("list", prefix, err)
	}
	return keys, nil
}

// Exists checks if a key exists.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := b.db.QueryRowContext(ctx, `SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, b.wrap("exists", key, err)
	}
	return true, nil
}

// Ping verifies the database is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close releases the database handle.
func (b *Backend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) wrap(op, key string, err error) error {
	if strings.Contains(err.Error(), "database is closed") {
		return storage.ErrClosed
	}
	return fmt.Errorf("sqlite storage: %s %q: %w", op, key, err)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}
