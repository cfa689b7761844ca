// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"slices"
	"sync"
	"time"
)

type record struct {
	slot    int64
	at      time.Time
	pending bool
}

// Memory is a process-local Limiter with the same semantics as SQLite.
type Memory struct {
	mu      sync.Mutex
	cfg     Config
	records []record
	next    int64
}

var _ Limiter = (*Memory)(nil)

func NewMemory(cfg Config) *Memory {
	return &Memory{cfg: cfg.withDefaults()}
}

// prune drops records that are at least a window old. Callers hold mu.
func (m *Memory) prune(now time.Time) {
	cutoff := now.Add(-m.cfg.Window)
	m.records = slices.DeleteFunc(m.records, func(r record) bool {
		return !r.at.After(cutoff)
	})
}

func (m *Memory) oldest() time.Time {
	var oldest time.Time
	for _, r := range m.records {
		if oldest.IsZero() || r.at.Before(oldest) {
			oldest = r.at
		}
	}
	return oldest
}

func (m *Memory) TryReserve(ctx context.Context) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	m.prune(now)
	if len(m.records) >= m.cfg.Quota {
		return Decision{RetryAfter: retryAfter(m.cfg.Window, now, m.oldest())}, nil
	}

	m.next++
	m.records = append(m.records, record{slot: m.next, at: now, pending: true})
	return Decision{Admitted: true, slot: m.next}, nil
}

func (m *Memory) RecordAttempt(_ context.Context, d Decision, at time.Time) error {
	if !d.Admitted || d.slot == 0 {
		return ErrNotReserved
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].slot == d.slot {
			m.records[i].at = at
			m.records[i].pending = false
			return nil
		}
	}
	m.records = append(m.records, record{at: at})
	return nil
}

func (m *Memory) Release(_ context.Context, d Decision) error {
	if !d.Admitted || d.slot == 0 {
		return ErrNotReserved
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = slices.DeleteFunc(m.records, func(r record) bool {
		return r.slot == d.slot && r.pending
	})
	return nil
}

func (m *Memory) Status(_ context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	cutoff := now.Add(-m.cfg.Window)
	used := 0
	var oldest time.Time
	for _, r := range m.records {
		if !r.at.After(cutoff) {
			continue
		}
		used++
		if oldest.IsZero() || r.at.Before(oldest) {
			oldest = r.at
		}
	}
	return newStatus(m.cfg, now, used, oldest), nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	return nil
}
