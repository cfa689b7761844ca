// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store. It backs the cache when on-disk caching
// is disabled and stands in for SQLite in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{entries: make(map[string]Entry), now: o.now}
}

func (m *Memory) Get(ctx context.Context, key string) (Lookup, error) {
	if err := ctx.Err(); err != nil {
		return Lookup{State: Miss}, err
	}

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return Lookup{State: Miss}, nil
	}

	e.Payload = bytes.Clone(e.Payload)
	return classify(e, m.now()), nil
}

func (m *Memory) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.Payload = bytes.Clone(e.Payload)
	m.mu.Lock()
	m.entries[e.Key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{Entries: len(m.entries), Location: "memory"}
	for _, e := range m.entries {
		if st.Oldest.IsZero() || e.FetchedAt.Before(st.Oldest) {
			st.Oldest = e.FetchedAt
		}
	}
	return st, nil
}
