// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"

	"github.com/staranto/sangre/internal/db"
)

// SQLite is the durable Store, persisted in the cache_entries table of the
// shared database file.
type SQLite struct {
	db       *sql.DB
	location string
	now      func() time.Time
}

var _ Store = (*SQLite)(nil)

// NewSQLite wraps an open database. location is the file path reported by
// Stats.
func NewSQLite(handle *sql.DB, location string, opts ...Option) *SQLite {
	o := buildOptions(opts)
	return &SQLite{db: handle, location: location, now: o.now}
}

// Get returns Fresh or Stale for a stored key and Miss otherwise. An entry
// that cannot be decoded yields Miss together with an ErrCorrupt error.
func (s *SQLite) Get(ctx context.Context, key string) (Lookup, error) {
	var (
		blob       []byte
		fetchedAt  int64
		ttlSeconds int64
	)

	row := s.db.QueryRowContext(ctx,
		"SELECT payload, fetched_at, ttl_seconds FROM cache_entries WHERE key = ?", key)
	if err := row.Scan(&blob, &fetchedAt, &ttlSeconds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debugf("cache miss: %s", key)
			return Lookup{State: Miss}, nil
		}
		return Lookup{State: Miss}, db.Wrap("read cache entry", err)
	}

	payload, err := unseal(blob)
	if err != nil {
		return Lookup{State: Miss}, fmt.Errorf("key %q: %w", key, err)
	}
	if ttlSeconds < 0 {
		return Lookup{State: Miss}, fmt.Errorf("key %q: %w: negative ttl %d", key, ErrCorrupt, ttlSeconds)
	}

	lk := classify(Entry{
		Key:       key,
		Payload:   payload,
		FetchedAt: time.UnixMilli(fetchedAt),
		TTL:       time.Duration(ttlSeconds) * time.Second,
	}, s.now())
	log.Debugf("cache %s: %s", lk.State, key)
	return lk, nil
}

// Put upserts e under the exclusive lock. Readers see either the previous
// row or the new one.
func (s *SQLite) Put(ctx context.Context, e Entry) error {
	return db.WithLock(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cache_entries (key, payload, fetched_at, ttl_seconds)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				payload = excluded.payload,
				fetched_at = excluded.fetched_at,
				ttl_seconds = excluded.ttl_seconds`,
			e.Key, seal(e.Payload), e.FetchedAt.UnixMilli(), ttlSeconds(e.TTL))
		if err != nil {
			return db.Wrap("write cache entry", err)
		}
		log.Debugf("cached %s (%d bytes)", e.Key, len(e.Payload))
		return nil
	})
}

// ttlSeconds rounds d up to whole seconds so a short TTL never reads back
// as zero.
func ttlSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}

// Clear removes every entry. Rate limit records are not touched.
func (s *SQLite) Clear(ctx context.Context) error {
	return db.WithLock(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM cache_entries")
		if err != nil {
			return db.Wrap("clear cache", err)
		}
		n, _ := res.RowsAffected()
		log.Infof("cache cleared (%d entries)", n)
		return nil
	})
}

// Stats reports the entry count, the oldest fetch time and the file
// location.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Location: s.location}
	if fi, err := os.Stat(s.location); err == nil {
		st.Size = fi.Size()
	}

	var oldest sql.NullInt64
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), MIN(fetched_at) FROM cache_entries")
	if err := row.Scan(&st.Entries, &oldest); err != nil {
		return st, db.Wrap("read cache stats", err)
	}
	if oldest.Valid {
		st.Oldest = time.UnixMilli(oldest.Int64)
	}
	return st, nil
}
