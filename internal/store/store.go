// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"time"

	"github.com/staranto/sangre/internal/db"
)

// DefaultTTL is how long a fetched payload is served without refetching.
const DefaultTTL = 4 * time.Hour

var (
	// ErrCorrupt is returned alongside a Miss when a stored entry cannot be
	// decoded. It is recoverable: callers log it and refetch.
	ErrCorrupt = errors.New("cache entry corrupt")

	// ErrPersistence is returned when the backing file cannot be used at all.
	ErrPersistence = db.ErrPersistence
)

// State classifies the outcome of a Get.
type State int

const (
	Miss State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// Entry is a cached payload. Payload is opaque to the store.
type Entry struct {
	Key       string
	Payload   []byte
	FetchedAt time.Time
	TTL       time.Duration
}

// FreshAt reports whether the entry is still within its TTL at now.
func (e Entry) FreshAt(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// Lookup is the result of a Get. Entry is only meaningful for Fresh and
// Stale.
type Lookup struct {
	State State
	Entry Entry
}

func classify(e Entry, now time.Time) Lookup {
	if e.FreshAt(now) {
		return Lookup{State: Fresh, Entry: e}
	}
	return Lookup{State: Stale, Entry: e}
}

// Stats describes the store for diagnostics.
type Stats struct {
	Entries  int
	Oldest   time.Time // zero when empty
	Location string
	Size     int64 // bytes on disk, 0 when unknown
}

// Store is a keyed, TTL-aware payload cache.
type Store interface {
	Get(ctx context.Context, key string) (Lookup, error)
	Put(ctx context.Context, e Entry) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
