// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cacheutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"github.com/staranto/sangre/internal/db"
)

// appDir is the directory name used beneath the user cache directory.
const appDir = "sangre-signal"

// Dir resolves the base cache directory.
// Precedence:
//  1. SANGRE_CACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/sangre-signal
//  3. $HOME/.cache/sangre-signal
//
// Returns ("", false) if a base cannot be resolved.
func Dir() (string, bool) {
	if c, ok := os.LookupEnv("SANGRE_CACHE_DIR"); ok && c != "" {
		return c, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, appDir), true
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache", appDir), true
	}
	return "", false
}

// Enabled returns true unless SANGRE_CACHE explicitly disables the on-disk
// payload cache ("0"/"false"). Rate limit records are kept on disk either
// way.
func Enabled() bool {
	enabled, _ := os.LookupEnv("SANGRE_CACHE")
	return enabled == "" || (enabled != "0" && enabled != "false")
}

// EnsureBaseDir creates the base cache directory if a base path can be
// resolved. Returns the path, whether it is usable, and an error if
// creation failed.
func EnsureBaseDir() (string, bool, error) {
	base, ok := Dir()
	if !ok {
		return "", false, nil
	}
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return base, false, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return base, true, nil
}

// DBPath returns the location of the database file. override, when set,
// wins over the resolved cache directory.
func DBPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	base, ok, err := EnsureBaseDir()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("cannot resolve a cache directory; set SANGRE_CACHE_DIR")
	}
	p := filepath.Join(base, db.FileName)
	log.Debugf("database path %s", p)
	return p, nil
}
