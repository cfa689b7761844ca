// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package meta

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/sangre/internal/config"
	"github.com/staranto/sangre/internal/store"
)

func TestOpen_WiresComponents(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SANGRE_CACHE_DIR", dir)
	t.Setenv("SANGRE_CACHE", "")

	m := &Meta{Settings: config.Settings{Quota: 7, TTL: time.Hour}}
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	assert.IsType(t, &store.SQLite{}, m.Store)
	assert.NotNil(t, m.Coordinator)
	assert.NotNil(t, m.Quotes)

	rep := m.Reporter.Report(context.Background())
	assert.Equal(t, 7, rep.Limit.Quota)
	assert.Equal(t, time.Hour, rep.TTL)
	assert.Equal(t, filepath.Join(dir, "stock_cache.db"), rep.Cache.Location)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestOpen_CacheDisabledKeepsLimiterOnDisk(t *testing.T) {
	t.Setenv("SANGRE_CACHE_DIR", t.TempDir())
	t.Setenv("SANGRE_CACHE", "0")

	m := &Meta{}
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	assert.IsType(t, &store.Memory{}, m.Store)

	d, err := m.Limiter.TryReserve(context.Background())
	require.NoError(t, err)
	require.True(t, d.Admitted)
	require.NoError(t, m.Limiter.RecordAttempt(context.Background(), d, time.Now()))
	require.NoError(t, m.Close())

	// A second process sees the recorded attempt.
	m2 := &Meta{}
	require.NoError(t, m2.Open(context.Background()))
	defer m2.Close()
	st, err := m2.Limiter.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Used)
}

func TestClearCache_CacheDisabledStillClearsDisk(t *testing.T) {
	t.Setenv("SANGRE_CACHE_DIR", t.TempDir())
	t.Setenv("SANGRE_CACHE", "")
	ctx := context.Background()

	m := &Meta{}
	require.NoError(t, m.Open(ctx))
	require.NoError(t, m.Store.Put(ctx, store.Entry{Key: "AAPL", Payload: []byte("p"), FetchedAt: time.Now(), TTL: time.Hour}))
	require.NoError(t, m.Close())

	t.Setenv("SANGRE_CACHE", "0")
	m2 := &Meta{}
	require.NoError(t, m2.Open(ctx))
	require.NoError(t, m2.ClearCache(ctx))
	require.NoError(t, m2.Close())

	t.Setenv("SANGRE_CACHE", "")
	m3 := &Meta{}
	require.NoError(t, m3.Open(ctx))
	defer m3.Close()
	lk, err := m3.Store.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, store.Miss, lk.State)
}

func TestFetchOptions(t *testing.T) {
	m := &Meta{Settings: config.Settings{TTL: 2 * time.Hour, MaxRetries: 3, BaseDelay: 2 * time.Second}}
	o := m.FetchOptions(true)
	assert.True(t, o.ForceRefresh)
	assert.Equal(t, 2*time.Hour, o.TTL)
	assert.Equal(t, 3, o.MaxRetries)
	assert.Equal(t, 2*time.Second, o.BaseDelay)
}
