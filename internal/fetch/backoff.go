// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff computes capped exponential delays with additive jitter.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter func(step time.Duration) time.Duration
}

// Delay returns the sleep before retry n (n = 0 for the first retry):
// min(Base*2^n + jitter, Max).
func (b Backoff) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}

	step := b.Max
	if n < 62 {
		if s := b.Base << n; s > 0 && s>>n == b.Base && s < b.Max {
			step = s
		}
	}

	d := step
	if b.Jitter != nil {
		d += b.Jitter(step)
	}
	if d > b.Max || d < 0 {
		return b.Max
	}
	return d
}

// quarterJitter returns a uniform random duration in [0, step/4].
func quarterJitter(step time.Duration) time.Duration {
	if step <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(step)/4 + 1))
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
