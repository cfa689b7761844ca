// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package meta

import (
	"context"
	"database/sql"
	"errors"

	"github.com/apex/log"

	"github.com/staranto/sangre/internal/cacheutil"
	"github.com/staranto/sangre/internal/config"
	"github.com/staranto/sangre/internal/db"
	"github.com/staranto/sangre/internal/fetch"
	"github.com/staranto/sangre/internal/ratelimit"
	"github.com/staranto/sangre/internal/status"
	"github.com/staranto/sangre/internal/store"
	"github.com/staranto/sangre/internal/yahoo"
)

// Meta is the per-process context shared by the command actions. The
// components are nil until Open succeeds.
type Meta struct {
	Args     []string
	Config   config.Type
	Context  context.Context
	Settings config.Settings

	Store       store.Store
	Limiter     ratelimit.Limiter
	Coordinator *fetch.Coordinator
	Reporter    *status.Reporter
	Quotes      *yahoo.Client

	handle *sql.DB
	path   string
}

// Open wires the store, limiter, coordinator, reporter and quote client
// from m.Settings. With SANGRE_CACHE disabled payloads are kept in memory
// only; rate limit records always go to disk so quota is shared between
// processes.
func (m *Meta) Open(ctx context.Context) error {
	path, err := cacheutil.DBPath(m.Settings.DBPath)
	if err != nil {
		return err
	}

	handle, err := db.Open(ctx, path)
	if err != nil {
		return err
	}
	m.handle = handle
	m.path = path

	m.Limiter = ratelimit.NewSQLite(handle, ratelimit.Config{
		Endpoint: m.Settings.Endpoint,
		Quota:    m.Settings.Quota,
		Window:   m.Settings.Window,
	})

	if cacheutil.Enabled() {
		m.Store = store.NewSQLite(handle, path)
	} else {
		log.Debug("payload cache disabled, using memory store")
		m.Store = store.NewMemory()
	}

	m.Coordinator = fetch.New(m.Store, m.Limiter, fetch.WithObserver(func(a fetch.Attempt) {
		entry := log.WithFields(log.Fields{"key": a.Key, "attempt": a.Number})
		if a.Err != nil {
			entry.WithError(a.Err).Debug("attempt failed")
			return
		}
		entry.Debug("attempt succeeded")
	}))
	m.Reporter = status.NewReporter(m.Store, m.Limiter, m.Settings.TTL)
	m.Quotes = yahoo.NewClient(
		yahoo.WithBaseURL(m.Settings.BaseURL),
		yahoo.WithTimeout(m.Settings.Timeout),
	)

	log.WithField("path", path).Debug("components ready")
	return nil
}

// ClearCache empties the payload cache. The on-disk table is cleared even
// when this process keeps payloads in memory.
func (m *Meta) ClearCache(ctx context.Context) error {
	if err := m.Store.Clear(ctx); err != nil {
		return err
	}
	if _, ok := m.Store.(*store.SQLite); ok || m.handle == nil {
		return nil
	}
	return store.NewSQLite(m.handle, m.path).Clear(ctx)
}

// FetchOptions maps the settings onto per-call fetch options.
func (m *Meta) FetchOptions(forceRefresh bool) fetch.Options {
	return fetch.Options{
		TTL:          m.Settings.TTL,
		MaxRetries:   m.Settings.MaxRetries,
		BaseDelay:    m.Settings.BaseDelay,
		MaxDelay:     m.Settings.MaxDelay,
		ForceRefresh: forceRefresh,
	}
}

// Close releases the database handle. It is safe to call more than once.
func (m *Meta) Close() error {
	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	if err != nil {
		return errors.Join(db.ErrPersistence, err)
	}
	return nil
}
