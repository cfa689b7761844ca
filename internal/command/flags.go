// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/sangre/internal/fetch"
	"github.com/staranto/sangre/internal/output"
	"github.com/staranto/sangre/internal/ratelimit"
	"github.com/staranto/sangre/internal/store"
	"github.com/staranto/sangre/internal/yahoo"
)

// NewFlags builds the root flags. cfgSource is the config file the flags
// fall back to after the environment.
func NewFlags(cfgSource string) []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "ticker",
			Aliases: []string{"t"},
			Usage:   "ticker symbol to look up; repeat (-t AAPL -t GOOG) or comma-separate (-t AAPL,GOOG)",
			Validator: func(values []string) error {
				for _, v := range values {
					if err := FlagValidators(v, JammedFlagValidator); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format (" + strings.Join(output.Formats, ", ") + ")",
			Sources: configChain(cfgSource, "SANGRE_FORMAT", "format"),
			Value:   output.FormatText,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, OutputValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output on a terminal",
			Sources: configChain(cfgSource, "SANGRE_COLOR", "color"),
			Value:   true,
		},
		&cli.BoolFlag{
			Name:  "refresh",
			Usage: "ignore fresh cache entries and fetch from the network",
		},
		&cli.BoolFlag{
			Name:  "status",
			Usage: "show rate limit and cache status, then exit",
		},
		&cli.BoolFlag{
			Name:  "clear-cache",
			Usage: "clear cached quotes, keeping rate limit history, then exit",
		},
		&cli.BoolFlag{
			Name:  "clear-all",
			Usage: "clear cached quotes and rate limit history, then exit",
		},
		&cli.DurationFlag{
			Name:    "ttl",
			Usage:   "how long a cached quote stays fresh",
			Sources: configChain(cfgSource, "SANGRE_TTL", "ttl"),
			Value:   store.DefaultTTL,
			Validator: func(d time.Duration) error {
				return FlagValidators(d, PositiveValidator, SecondsValidator)
			},
		},
		&cli.IntFlag{
			Name:    "quota",
			Usage:   "network requests allowed per window",
			Sources: configChain(cfgSource, "SANGRE_QUOTA", "limiter.quota"),
			Value:   ratelimit.DefaultQuota,
			Validator: func(n int) error {
				return FlagValidators(n, PositiveValidator)
			},
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "network attempts per ticker, including the first",
			Sources: configChain(cfgSource, "SANGRE_MAX_RETRIES", "fetch.max_retries"),
			Value:   fetch.DefaultMaxRetries,
			Validator: func(n int) error {
				return FlagValidators(n, PositiveValidator)
			},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "bound on a single network attempt",
			Sources: configChain(cfgSource, "SANGRE_TIMEOUT", "fetch.timeout"),
			Value:   yahoo.DefaultTimeout,
			Validator: func(d time.Duration) error {
				return FlagValidators(d, PositiveValidator)
			},
		},
		&cli.BoolFlag{
			Name:        "version",
			Aliases:     []string{"v"},
			Usage:       "sangre version info",
			HideDefault: true,
		},
	}
}

// configChain sources a flag from env first, then the config file key.
func configChain(cfgSource, env, key string) cli.ValueSourceChain {
	chain := cli.NewValueSourceChain(cli.EnvVar(env))
	if cfgSource != "" {
		chain.Chain = append(chain.Chain, yaml.YAML(key, altsrc.StringSourcer(cfgSource)))
	}
	return chain
}
