// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/apex/log"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// FileName is the name of the database file beneath the cache directory.
const FileName = "stock_cache.db"

// ErrPersistence marks failures to read or write the database file at all.
// It is fatal for the operation that hit it.
var ErrPersistence = errors.New("persistence i/o error")

// busyTimeoutMillis bounds how long a writer waits for another process to
// release the database lock.
const busyTimeoutMillis = 10000

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	fetched_at  INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_limit (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	endpoint     TEXT NOT NULL DEFAULT 'yahoo',
	request_time INTEGER NOT NULL,
	pending      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rate_limit_time ON rate_limit(endpoint, request_time);
`

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Every transaction begun on the returned handle is BEGIN
// IMMEDIATE, i.e. it takes the database write lock up front.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("%w: create database directory: %w", ErrPersistence, err)
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrPersistence, path, err)
	}

	// One connection per process keeps in-process writers from tripping
	// over SQLITE_BUSY; other processes are handled by busy_timeout.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema to %s: %w", ErrPersistence, path, err)
	}

	log.Debugf("opened database %s", path)
	return db, nil
}

// WithLock runs fn inside an exclusive transaction. The transaction is
// committed only when fn returns nil and is rolled back on every other exit
// path, including panics and context cancellation.
func WithLock(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Wrap("acquire lock", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrPersistence, err)
	}
	return nil
}

// Wrap tags err as a persistence failure unless it is nil or already one.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
