// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0
package command

import (
	"context"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/staranto/sangre/internal/config"
	"github.com/staranto/sangre/internal/meta"
	"github.com/staranto/sangre/internal/version"
)

func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	cfg, _ := config.Load()
	m := meta.Meta{
		Args:     args,
		Config:   cfg,
		Context:  ctx,
		Settings: config.LoadSettings(),
	}

	app := &cli.Command{
		Name:    "sangre",
		Usage:   "cached, rate limited stock lookups",
		Version: version.Version,
		UsageText: `sangre -t AAPL,MSFT [options]
sangre --status
sangre --clear-cache`,
		HideVersion: true,
		Metadata: map[string]any{
			"meta": m,
		},
		Flags:  NewFlags(cfg.Source),
		Action: RootCommandAction,
	}

	app.Commands = append(app.Commands, CompletionCommandBuilder(m))

	// Make sure flags are sorted for the --help text.
	sort.Slice(app.Flags, func(i, j int) bool {
		return app.Flags[i].Names()[0] < app.Flags[j].Names()[0]
	})

	return app, nil
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil {
		return meta.Meta{}
	}
	root := cmd.Root()
	if root.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := root.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}
