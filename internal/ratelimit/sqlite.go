// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"database/sql"
	"time"

	"github.com/apex/log"

	"github.com/staranto/sangre/internal/db"
)

// SQLite persists the attempt log in the rate_limit table so the quota
// holds across invocations and across concurrently running processes.
type SQLite struct {
	db  *sql.DB
	cfg Config
}

var _ Limiter = (*SQLite)(nil)

func NewSQLite(handle *sql.DB, cfg Config) *SQLite {
	return &SQLite{db: handle, cfg: cfg.withDefaults()}
}

// TryReserve prunes timestamps that left the window, counts what remains
// (in-flight slots of other processes included) and, when below quota,
// takes a pending slot. All three steps happen under one exclusive lock.
func (s *SQLite) TryReserve(ctx context.Context) (Decision, error) {
	var d Decision
	err := db.WithLock(ctx, s.db, func(tx *sql.Tx) error {
		now := s.cfg.Now()
		cutoff := now.Add(-s.cfg.Window).UnixMilli()

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM rate_limit WHERE endpoint = ? AND request_time <= ?",
			s.cfg.Endpoint, cutoff); err != nil {
			return db.Wrap("prune rate window", err)
		}

		var (
			used   int
			oldest sql.NullInt64
		)
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*), MIN(request_time) FROM rate_limit WHERE endpoint = ?",
			s.cfg.Endpoint).Scan(&used, &oldest); err != nil {
			return db.Wrap("count rate window", err)
		}

		if used >= s.cfg.Quota {
			d.RetryAfter = retryAfter(s.cfg.Window, now, time.UnixMilli(oldest.Int64))
			log.WithFields(log.Fields{
				"endpoint":    s.cfg.Endpoint,
				"used":        used,
				"quota":       s.cfg.Quota,
				"retry_after": d.RetryAfter.Round(time.Second),
			}).Warn("rate limit reached")
			return nil
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO rate_limit (endpoint, request_time, pending) VALUES (?, ?, 1)",
			s.cfg.Endpoint, now.UnixMilli())
		if err != nil {
			return db.Wrap("reserve rate slot", err)
		}
		if d.slot, err = res.LastInsertId(); err != nil {
			return db.Wrap("reserve rate slot", err)
		}
		d.Admitted = true
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

// RecordAttempt commits a reserved slot with the time the attempt
// finished.
func (s *SQLite) RecordAttempt(ctx context.Context, d Decision, at time.Time) error {
	if !d.Admitted || d.slot == 0 {
		return ErrNotReserved
	}
	return db.WithLock(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE rate_limit SET request_time = ?, pending = 0 WHERE id = ? AND endpoint = ?",
			at.UnixMilli(), d.slot, s.cfg.Endpoint)
		if err != nil {
			return db.Wrap("record attempt", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		// The slot was pruned or reset while the attempt ran; the attempt
		// still happened upstream, so it still counts.
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rate_limit (endpoint, request_time, pending) VALUES (?, ?, 0)",
			s.cfg.Endpoint, at.UnixMilli()); err != nil {
			return db.Wrap("record attempt", err)
		}
		return nil
	})
}

// Release gives back a slot whose attempt never completed.
func (s *SQLite) Release(ctx context.Context, d Decision) error {
	if !d.Admitted || d.slot == 0 {
		return ErrNotReserved
	}
	return db.WithLock(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM rate_limit WHERE id = ? AND endpoint = ? AND pending = 1",
			d.slot, s.cfg.Endpoint)
		return db.Wrap("release rate slot", err)
	})
}

// Status counts the timestamps inside the window without modifying the
// log.
func (s *SQLite) Status(ctx context.Context) (Status, error) {
	now := s.cfg.Now()
	cutoff := now.Add(-s.cfg.Window).UnixMilli()

	var (
		used   int
		oldest sql.NullInt64
	)
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(request_time) FROM rate_limit WHERE endpoint = ? AND request_time > ?",
		s.cfg.Endpoint, cutoff).Scan(&used, &oldest); err != nil {
		return newStatus(s.cfg, now, 0, time.Time{}), db.Wrap("read rate status", err)
	}

	var oldestAt time.Time
	if oldest.Valid {
		oldestAt = time.UnixMilli(oldest.Int64)
	}
	return newStatus(s.cfg, now, used, oldestAt), nil
}

// Reset drops the whole attempt log for the endpoint.
func (s *SQLite) Reset(ctx context.Context) error {
	return db.WithLock(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM rate_limit WHERE endpoint = ?", s.cfg.Endpoint); err != nil {
			return db.Wrap("reset rate window", err)
		}
		log.Infof("rate limit records cleared for %s", s.cfg.Endpoint)
		return nil
	})
}
