// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultQuota is the number of upstream attempts allowed per window.
	// It sits below the provider's real limit on purpose.
	DefaultQuota = 80

	// DefaultWindow is the length of the trailing window.
	DefaultWindow = time.Hour

	// DefaultEndpoint names the upstream the attempts are counted against.
	DefaultEndpoint = "yahoo"
)

// ErrNotReserved is returned when an attempt is recorded or released
// without an admitted reservation.
var ErrNotReserved = errors.New("no admitted reservation")

// Decision is the outcome of TryReserve. An admitted decision holds a slot
// in the window that must be passed to exactly one of RecordAttempt or
// Release.
type Decision struct {
	Admitted   bool
	RetryAfter time.Duration // only set when denied
	slot       int64
}

// Status is a read-only view of the current window.
type Status struct {
	Endpoint    string
	Used        int
	Quota       int
	Remaining   int
	WindowStart time.Time
	Window      time.Duration
	Limited     bool
	RetryAfter  time.Duration // only set when Limited
}

// Limiter is a sliding-window log limiter.
type Limiter interface {
	TryReserve(ctx context.Context) (Decision, error)
	RecordAttempt(ctx context.Context, d Decision, at time.Time) error
	Release(ctx context.Context, d Decision) error
	Status(ctx context.Context) (Status, error)
	Reset(ctx context.Context) error
}

// Config holds the limiter knobs.
type Config struct {
	Endpoint string
	Quota    int
	Window   time.Duration
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Quota <= 0 {
		c.Quota = DefaultQuota
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// retryAfter is the time until the oldest timestamp still in the window
// ages out of it.
func retryAfter(window time.Duration, now, oldest time.Time) time.Duration {
	d := window - now.Sub(oldest)
	if d < 0 {
		return 0
	}
	return d
}

func newStatus(cfg Config, now time.Time, used int, oldest time.Time) Status {
	st := Status{
		Endpoint:    cfg.Endpoint,
		Used:        used,
		Quota:       cfg.Quota,
		Remaining:   max(0, cfg.Quota-used),
		WindowStart: now.Add(-cfg.Window),
		Window:      cfg.Window,
		Limited:     used >= cfg.Quota,
	}
	if st.Limited && !oldest.IsZero() {
		st.RetryAfter = retryAfter(cfg.Window, now, oldest)
	}
	return st
}
