// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package config

import "time"

// Settings are the runtime knobs. Zero values mean "use the package
// default" to the components that consume them.
type Settings struct {
	TTL        time.Duration
	Endpoint   string
	Quota      int
	Window     time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
	BaseURL    string
	DBPath     string
	LogFile    string
}

// LoadSettings reads the knobs that have no command line flag from the
// config file. Missing keys are left at zero.
func LoadSettings() Settings {
	var s Settings
	s.TTL, _ = GetDuration("ttl", 0)
	s.Endpoint, _ = GetString("limiter.endpoint", "")
	s.Quota, _ = GetInt("limiter.quota", 0)
	s.Window, _ = GetDuration("limiter.window", 0)
	s.MaxRetries, _ = GetInt("fetch.max_retries", 0)
	s.BaseDelay, _ = GetDuration("fetch.base_delay", 0)
	s.MaxDelay, _ = GetDuration("fetch.max_delay", 0)
	s.Timeout, _ = GetDuration("fetch.timeout", 0)
	s.BaseURL, _ = GetString("yahoo.base_url", "")
	s.DBPath, _ = GetString("cache.path", "")
	s.LogFile, _ = GetString("log.file", "")
	return s
}
