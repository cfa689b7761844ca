// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"context"
	"time"

	"github.com/apex/log"

	"github.com/staranto/sangre/internal/ratelimit"
	"github.com/staranto/sangre/internal/store"
)

// StatsReader is the read-only half of a store.
type StatsReader interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// StatusReader is the read-only half of a limiter.
type StatusReader interface {
	Status(ctx context.Context) (ratelimit.Status, error)
}

// Report is a diagnostic snapshot. Notes carry read problems that did not
// stop the report from being produced.
type Report struct {
	Limit ratelimit.Status
	Cache store.Stats
	TTL   time.Duration
	Notes []string
}

// Reporter composes limiter and store state. It never mutates either.
type Reporter struct {
	store   StatsReader
	limiter StatusReader
	ttl     time.Duration
}

func NewReporter(s StatsReader, l StatusReader, ttl time.Duration) *Reporter {
	if ttl <= 0 {
		ttl = store.DefaultTTL
	}
	return &Reporter{store: s, limiter: l, ttl: ttl}
}

// Report always returns a report; failures to read either side are logged
// and recorded in Notes, with that side reported as empty.
func (r *Reporter) Report(ctx context.Context) Report {
	rep := Report{TTL: r.ttl}

	lim, err := r.limiter.Status(ctx)
	if err != nil {
		log.WithError(err).Warn("rate limit status unavailable")
		rep.Notes = append(rep.Notes, "rate limit status unavailable: "+err.Error())
	}
	rep.Limit = lim

	st, err := r.store.Stats(ctx)
	if err != nil {
		log.WithError(err).Warn("cache stats unavailable")
		rep.Notes = append(rep.Notes, "cache stats unavailable: "+err.Error())
		st.Entries = 0
		st.Oldest = time.Time{}
	}
	rep.Cache = st

	return rep
}
