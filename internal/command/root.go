// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/sangre/internal/config"
	"github.com/staranto/sangre/internal/meta"
	"github.com/staranto/sangre/internal/output"
	"github.com/staranto/sangre/internal/version"
)

// maxConcurrentTickers bounds in-flight lookups. The limiter and the
// coordinator keep quota and cache consistent at any level.
const maxConcurrentTickers = 4

// FailedTickersError reports the tickers that ended with an error. Output
// was still produced for the rest.
type FailedTickersError struct {
	Tickers []string
	Total   int
}

func (e *FailedTickersError) Error() string {
	return fmt.Sprintf("%d of %d tickers failed: %s", len(e.Tickers), e.Total, strings.Join(e.Tickers, ", "))
}

// RootCommandAction handles --status, --clear-cache and --clear-all, and
// otherwise looks up every --ticker.
func RootCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if cmd.Bool("version") {
		_, err := fmt.Fprintln(cmd.Root().Writer, version.Version)
		return err
	}

	if err := ModeValidator(cmd); err != nil {
		return err
	}

	m.Settings = settingsFrom(cmd, m.Settings)
	if err := m.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}()

	w := cmd.Root().Writer
	opts := output.Options{
		Format: cmd.String("format"),
		Color:  output.ColorEnabled(w, cmd.Bool("color")),
		Stderr: cmd.Root().ErrWriter,
	}

	switch {
	case cmd.Bool("status"):
		return output.RenderStatus(w, m.Reporter.Report(ctx), opts)
	case cmd.Bool("clear-cache"):
		if err := m.ClearCache(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, "Cache cleared successfully.")
		return err
	case cmd.Bool("clear-all"):
		if err := m.ClearCache(ctx); err != nil {
			return err
		}
		if err := m.Limiter.Reset(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, "Cache and rate limit history cleared.")
		return err
	}

	tickers := NormalizeTickers(cmd.StringSlice("ticker"))
	if len(tickers) == 0 {
		return errors.New("no tickers given; use --ticker, --status or --help")
	}

	quotes := lookupQuotes(ctx, &m, tickers, cmd.Bool("refresh"))
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := output.RenderQuotes(w, quotes, opts); err != nil {
		return err
	}

	var failed []string
	for _, q := range quotes {
		if q.Err != nil {
			log.WithError(q.Err).WithField("ticker", q.Ticker).Error("lookup failed")
			failed = append(failed, q.Ticker)
		}
	}
	if len(failed) > 0 {
		return &FailedTickersError{Tickers: failed, Total: len(tickers)}
	}
	return nil
}

// lookupQuotes fetches every ticker through the coordinator. The result
// order matches tickers.
func lookupQuotes(ctx context.Context, m *meta.Meta, tickers []string, refresh bool) []output.Quote {
	quotes := make([]output.Quote, len(tickers))
	fopts := m.FetchOptions(refresh)

	var g errgroup.Group
	g.SetLimit(maxConcurrentTickers)
	for i, t := range tickers {
		g.Go(func() error {
			res, err := m.Coordinator.Fetch(ctx, t, m.Quotes.Quote(t), fopts)
			quotes[i] = output.Quote{Ticker: t, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return quotes
}

// settingsFrom overlays the flag values on the config file settings. Flags
// already fall back to the same config keys, so they always win.
func settingsFrom(cmd *cli.Command, s config.Settings) config.Settings {
	s.TTL = cmd.Duration("ttl")
	s.Quota = cmd.Int("quota")
	s.MaxRetries = cmd.Int("max-retries")
	s.Timeout = cmd.Duration("timeout")
	return s
}
