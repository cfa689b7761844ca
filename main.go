// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/staranto/sangre/internal/command"
	"github.com/staranto/sangre/internal/config"
	mylog "github.com/staranto/sangre/internal/log"
	"github.com/staranto/sangre/internal/version"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	_, _ = config.Load()
	logFile, _ := config.GetString("log.file", "")
	closeLog, err := mylog.InitLogger(logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	defer closeLog() //nolint:errcheck

	args := os.Args

	// Short-circuit --version/-v.
	for _, a := range args[1:] {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return exitCode(app.Run(ctx, args))
}

// exitCode maps the outcome of a run: 0 success, 1 when some tickers
// failed, 130 on interrupt, 2 for anything else.
func exitCode(err error) int {
	var failed *command.FailedTickersError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &failed):
		fmt.Fprintln(os.Stderr, err)
		return 1
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Interrupted")
		return 130
	default:
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
}
