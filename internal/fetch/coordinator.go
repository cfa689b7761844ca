// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/staranto/sangre/internal/ratelimit"
	"github.com/staranto/sangre/internal/store"
)

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// Func performs one network attempt and returns the raw payload. It is
// responsible for bounding the attempt with its own timeout. Errors may be
// marked with Transient, Fatal or ErrNotFound; unmarked errors are
// classified by their message.
type Func func(ctx context.Context) ([]byte, error)

// Source says where a Result's payload came from.
type Source int

const (
	SourceCache Source = iota
	SourceNetwork
)

func (s Source) String() string {
	if s == SourceNetwork {
		return "network"
	}
	return "cache"
}

// Options tune a single Fetch call. Zero values take the defaults.
type Options struct {
	TTL          time.Duration
	MaxRetries   int // total attempts, including the first
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	ForceRefresh bool
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = store.DefaultTTL
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	return o
}

// Result is a payload plus where it came from. ServedStale is set when an
// expired entry was returned because a network fetch was not permitted or
// did not succeed; presenters must surface it.
type Result struct {
	Payload     []byte
	Source      Source
	ServedStale bool
	FetchedAt   time.Time
	Attempts    int
}

// Attempt describes one network attempt of a Fetch call.
type Attempt struct {
	Key    string
	Number int           // 1-based
	Delay  time.Duration // slept before this attempt
	Err    error         // nil on success
}

// Store is the part of store.Store the coordinator needs.
type Store interface {
	Get(ctx context.Context, key string) (store.Lookup, error)
	Put(ctx context.Context, e store.Entry) error
}

// Limiter is the part of ratelimit.Limiter the coordinator needs.
type Limiter interface {
	TryReserve(ctx context.Context) (ratelimit.Decision, error)
	RecordAttempt(ctx context.Context, d ratelimit.Decision, at time.Time) error
	Release(ctx context.Context, d ratelimit.Decision) error
}

// Coordinator gates Funcs behind the cache and the rate limiter. It is the
// only writer to both.
type Coordinator struct {
	store   Store
	limiter Limiter
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	jitter  func(time.Duration) time.Duration
	observe func(Attempt)
	group   singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of one shared execution. It is cancelled only once
// every caller waiting on it has gone away.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// WithJitter replaces the jitter source. A func returning 0 disables
// jitter.
func WithJitter(jitter func(time.Duration) time.Duration) Option {
	return func(c *Coordinator) { c.jitter = jitter }
}

// WithObserver registers a callback invoked after every network attempt.
func WithObserver(fn func(Attempt)) Option {
	return func(c *Coordinator) { c.observe = fn }
}

func New(s Store, l Limiter, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   s,
		limiter: l,
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  quarterJitter,
		observe: func(Attempt) {},
		flights: map[string]*flight{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type outcome struct {
	result    Result
	err       error
	abandoned bool // every caller left before it finished
}

// Fetch returns the payload for key, from the cache when fresh and from fn
// otherwise. Concurrent calls for the same key and refresh mode in this
// process share one execution. A caller whose ctx ends stops waiting; the
// shared execution is interrupted only when no caller is left.
func (c *Coordinator) Fetch(ctx context.Context, key string, fn Func, opts Options) (Result, error) {
	fk := key
	if opts.ForceRefresh {
		fk += "\x00refresh"
	}

	for {
		out := c.share(ctx, fk, key, fn, opts)
		// Joined an execution abandoned by its other callers; start over.
		if out.abandoned && ctx.Err() == nil {
			continue
		}
		return out.result, out.err
	}
}

func (c *Coordinator) share(ctx context.Context, fk, key string, fn Func, opts Options) outcome {
	f := c.join(ctx, fk)
	ch := c.group.DoChan(fk, func() (any, error) {
		r, err := c.fetch(f.ctx, key, fn, opts.withDefaults())
		abandoned := f.ctx.Err() != nil
		c.mu.Lock()
		if c.flights[fk] == f {
			delete(c.flights, fk)
		}
		c.mu.Unlock()
		f.cancel()
		return outcome{result: r, err: err, abandoned: abandoned}, nil
	})

	select {
	case res := <-ch:
		if c.leave(f) {
			f.cancel()
		}
		return unpack(res)
	case <-ctx.Done():
		if !c.leave(f) {
			return outcome{err: fmt.Errorf("fetch %s: %w", key, ctx.Err())}
		}
		// Last waiter: interrupt and wait so nothing is left half committed.
		f.cancel()
		return unpack(<-ch)
	}
}

func (c *Coordinator) join(ctx context.Context, fk string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[fk]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{key: fk, ctx: fctx, cancel: cancel}
		c.flights[fk] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter and reports whether it was the last one. A flight
// without waiters is never joined again.
func (c *Coordinator) leave(f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return false
	}
	if c.flights[f.key] == f {
		delete(c.flights, f.key)
	}
	return true
}

func unpack(res singleflight.Result) outcome {
	out := res.Val.(outcome) //nolint:forcetypeassert
	if res.Shared {
		out.result.Payload = bytes.Clone(out.result.Payload)
	}
	return out
}

func (c *Coordinator) fetch(ctx context.Context, key string, fn Func, opts Options) (Result, error) {
	logger := log.WithField("key", key)

	// CheckCache. The entry is read even on a forced refresh so it can
	// serve as the fallback.
	var (
		fallback      *store.Entry
		fallbackStale bool
	)
	lk, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrCorrupt):
		logger.WithError(err).Warn("cache entry unreadable, treating as miss")
	case err != nil:
		return Result{}, fmt.Errorf("read cache for %s: %w", key, err)
	}
	switch lk.State {
	case store.Fresh:
		if !opts.ForceRefresh {
			logger.Info("cache hit")
			return Result{Payload: lk.Entry.Payload, Source: SourceCache, FetchedAt: lk.Entry.FetchedAt}, nil
		}
		fallback = &lk.Entry
	case store.Stale:
		fallback = &lk.Entry
		fallbackStale = true
	}

	backoff := Backoff{Base: opts.BaseDelay, Max: opts.MaxDelay, Jitter: c.jitter}
	var (
		lastErr error
		delay   time.Duration
	)

	for n := 1; n <= opts.MaxRetries; n++ {
		if n > 1 {
			delay = backoff.Delay(n - 2)
			logger.WithError(lastErr).Warnf("attempt %d/%d failed, retrying in %s",
				n-1, opts.MaxRetries, delay.Round(time.Millisecond))
			if err := c.sleep(ctx, delay); err != nil {
				return Result{}, fmt.Errorf("fetch %s: %w", key, err)
			}
		}

		// CheckQuota, before every attempt.
		d, err := c.limiter.TryReserve(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("check rate limit for %s: %w", key, err)
		}
		if !d.Admitted {
			qe := &QuotaExceededError{RetryAfter: d.RetryAfter}
			if fallback != nil {
				logger.WithError(qe).Warn("serving cached entry")
				return cached(*fallback, fallbackStale, n-1), nil
			}
			return Result{Attempts: n - 1}, qe
		}

		payload, ferr := fn(ctx)
		if ferr != nil && ctx.Err() != nil {
			// Interrupted before the attempt completed: nothing is committed.
			if err := c.limiter.Release(context.WithoutCancel(ctx), d); err != nil {
				logger.WithError(err).Warn("failed to release rate slot")
			}
			return Result{}, fmt.Errorf("fetch %s: %w", key, ctx.Err())
		}

		// The attempt completed, so it is committed even if ctx is cancelled
		// from here on.
		commitCtx := context.WithoutCancel(ctx)
		at := c.now()
		if err := c.limiter.RecordAttempt(commitCtx, d, at); err != nil {
			return Result{}, fmt.Errorf("record attempt for %s: %w", key, err)
		}
		c.observe(Attempt{Key: key, Number: n, Delay: delay, Err: ferr})

		if ferr == nil {
			res := Result{Payload: payload, Source: SourceNetwork, FetchedAt: at, Attempts: n}
			if err := c.store.Put(commitCtx, store.Entry{Key: key, Payload: payload, FetchedAt: at, TTL: opts.TTL}); err != nil {
				logger.WithError(err).Error("failed to write cache entry")
				return res, fmt.Errorf("cache %s: %w", key, err)
			}
			logger.WithField("attempts", n).Info("fetched from network")
			return res, nil
		}

		switch classify(ferr) {
		case kindNotFound:
			logger.WithError(ferr).Error("not found upstream")
			return Result{Attempts: n}, fmt.Errorf("fetch %s: %w", key, ferr)
		case kindFatal:
			logger.WithError(ferr).Error("fetch failed")
			var fe *FatalError
			if !errors.As(ferr, &fe) {
				ferr = &FatalError{Cause: ferr}
			}
			return withFallback(fallback, fallbackStale, n, fmt.Errorf("fetch %s: %w", key, ferr))
		}
		lastErr = ferr
	}

	logger.WithError(lastErr).Errorf("giving up after %d attempts", opts.MaxRetries)
	return withFallback(fallback, fallbackStale, opts.MaxRetries,
		&RetriesExhaustedError{Attempts: opts.MaxRetries, LastCause: lastErr})
}

// cached returns a stored entry as a cache Result. ServedStale is set only
// when the entry is past its TTL.
func cached(e store.Entry, stale bool, attempts int) Result {
	return Result{
		Payload:     e.Payload,
		Source:      SourceCache,
		ServedStale: stale,
		FetchedAt:   e.FetchedAt,
		Attempts:    attempts,
	}
}

// withFallback returns err together with the cached entry, when there is
// one, so callers may still show something.
func withFallback(fallback *store.Entry, stale bool, attempts int, err error) (Result, error) {
	if fallback == nil {
		return Result{Attempts: attempts}, err
	}
	return cached(*fallback, stale, attempts), err
}
