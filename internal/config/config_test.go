// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// setupTestConfig sets SANGRE_CFG to point to a test config file.
// Returns cleanup function that should be deferred.
func setupTestConfig(t *testing.T, testdataFile string) (cleanup func()) {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join("testdata", testdataFile))
	assert.NoError(t, err, "failed to get absolute path for test config")

	t.Setenv("SANGRE_CFG", absPath)

	// Reset the global Config to force reload
	Config = Type{}

	return func() {
		Config = Type{}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		checkFunc func(*testing.T, Type)
	}{
		{
			name:     "simple string values",
			testFile: "simple.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Equal(t, "json", cfg.Data["format"])
				assert.Equal(t, "yahoo", cfg.Data["endpoint"])
			},
		},
		{
			name:     "nested structure",
			testFile: "nested.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				limiter, ok := cfg.Data["limiter"].(map[string]interface{})
				assert.True(t, ok, "limiter should be a map")
				assert.Equal(t, 80, limiter["quota"])
				assert.Equal(t, "1h", limiter["window"])
			},
		},
		{
			name:     "mixed types",
			testFile: "mixed-types.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.Equal(t, "sangre-signal", cfg.Data["name"])
				assert.Equal(t, 1, cfg.Data["version"])
				assert.Equal(t, true, cfg.Data["enabled"])
				assert.Equal(t, 30.5, cfg.Data["timeout"])
				tickers, ok := cfg.Data["tickers"].([]interface{})
				assert.True(t, ok)
				assert.Len(t, tickers, 2)
			},
		},
		{
			name:     "empty file",
			testFile: "empty.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source, "should have a source path")
				assert.Empty(t, cfg.Data)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			cfg, err := Load()
			assert.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("SANGRE_CFG", "/nonexistent/path/sangre.yaml")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_SANGRE_CFG_IsDirectory(t *testing.T) {
	t.Setenv("SANGRE_CFG", "testdata")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestLoad_StandardLocations(t *testing.T) {
	t.Setenv("SANGRE_CFG", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("APPDATA", "")
	home, err := filepath.Abs("testdata")
	assert.NoError(t, err)
	t.Setenv("HOME", home)
	Config = Type{}

	// testdata has no sangre.yaml.
	_, err = Load()
	assert.ErrorContains(t, err, "no config file found")
}

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []string
		want         string
		wantErr      bool
	}{
		{
			name:     "simple string value",
			testFile: "simple.yaml",
			key:      "format",
			want:     "json",
		},
		{
			name:     "nested string value",
			testFile: "nested.yaml",
			key:      "limiter.endpoint",
			want:     "yahoo",
		},
		{
			name:         "missing key with default",
			testFile:     "simple.yaml",
			key:          "missing",
			defaultValue: []string{"default-value"},
			want:         "default-value",
		},
		{
			name:     "missing key without default",
			testFile: "simple.yaml",
			key:      "missing",
			wantErr:  true,
		},
		{
			name:     "non-string value",
			testFile: "mixed-types.yaml",
			key:      "version",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			_, _ = Load()

			got, err := GetString(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []int
		want         int
		wantErr      bool
	}{
		{
			name:     "int value",
			testFile: "mixed-types.yaml",
			key:      "version",
			want:     1,
		},
		{
			name:     "float value converted to int",
			testFile: "mixed-types.yaml",
			key:      "timeout",
			want:     30,
		},
		{
			name:     "nested int value",
			testFile: "nested.yaml",
			key:      "fetch.max_retries",
			want:     5,
		},
		{
			name:         "missing key with default",
			testFile:     "simple.yaml",
			key:          "quota",
			defaultValue: []int{80},
			want:         80,
		},
		{
			name:     "missing key without default",
			testFile: "simple.yaml",
			key:      "quota",
			wantErr:  true,
		},
		{
			name:     "non-int value",
			testFile: "simple.yaml",
			key:      "format",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			_, _ = Load()

			got, err := GetInt(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetDuration(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []time.Duration
		want         time.Duration
		wantErr      bool
	}{
		{
			name:     "duration string",
			testFile: "simple.yaml",
			key:      "ttl",
			want:     2 * time.Hour,
		},
		{
			name:     "bare seconds",
			testFile: "nested.yaml",
			key:      "fetch.timeout",
			want:     15 * time.Second,
		},
		{
			name:     "fractional seconds",
			testFile: "mixed-types.yaml",
			key:      "timeout",
			want:     30*time.Second + 500*time.Millisecond,
		},
		{
			name:         "missing key with default",
			testFile:     "simple.yaml",
			key:          "window",
			defaultValue: []time.Duration{time.Hour},
			want:         time.Hour,
		},
		{
			name:     "unparseable string",
			testFile: "simple.yaml",
			key:      "format",
			wantErr:  true,
		},
		{
			name:     "wrong type",
			testFile: "mixed-types.yaml",
			key:      "enabled",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			got, err := GetDuration(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_GetNestedPath(t *testing.T) {
	cleanup := setupTestConfig(t, "deep-nested.yaml")
	defer cleanup()

	_, err := Load()
	assert.NoError(t, err)

	val, err := Config.get("level1.level2.level3.value")
	assert.NoError(t, err)
	assert.Equal(t, "deep-value", val)
}

func TestConfig_LazyLoad(t *testing.T) {
	cleanup := setupTestConfig(t, "simple.yaml")
	defer cleanup()

	// GetString triggers the load.
	val, err := GetString("format")
	assert.NoError(t, err)
	assert.Equal(t, "json", val)
	assert.NotEmpty(t, Config.Source, "Config should be loaded")
}

func TestGetString_NamespaceFallback(t *testing.T) {
	cleanup := setupTestConfig(t, "namespace.yaml")
	defer cleanup()

	_, err := Load()
	assert.NoError(t, err)

	Config.Namespace = "status"

	val, err := GetString("format")
	assert.NoError(t, err)
	assert.Equal(t, "yaml", val)

	// Not under the namespace, so the top-level value is used.
	d, err := GetDuration("ttl")
	assert.NoError(t, err)
	assert.Equal(t, 4*time.Hour, d)

	Config.Namespace = "fetch"
	d, err = GetDuration("ttl")
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	_, err = GetString("nonexistent")
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	cleanup := setupTestConfig(t, "nested.yaml")
	defer cleanup()

	s := LoadSettings()
	assert.Equal(t, "yahoo", s.Endpoint)
	assert.Equal(t, 80, s.Quota)
	assert.Equal(t, time.Hour, s.Window)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, time.Second, s.BaseDelay)
	assert.Equal(t, 30*time.Second, s.MaxDelay)
	assert.Equal(t, 15*time.Second, s.Timeout)
	assert.Zero(t, s.TTL)
	assert.Empty(t, s.DBPath)
}

func TestLoadSettings_NoFile(t *testing.T) {
	t.Setenv("SANGRE_CFG", "/nonexistent/sangre.yaml")
	Config = Type{}

	assert.Equal(t, Settings{}, LoadSettings())
}
