package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string, values map[string]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(values)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// isolate points every config location into a temp tree and clears env.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, ".config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, ".cache"))
	for _, k := range []string{
		"OPPS_BASE_URL", "OPPS_PAGE_SIZE", "OPPS_FETCH_TIMEOUT", "OPPS_PREFETCH_DELAY",
		"OPPS_CACHE_MAX_ENTRIES", "OPPS_CACHE_DIR", "OPPS_FORMAT", "OPPS_STATS",
	} {
		t.Setenv(k, "")
	}
	return root
}

func TestDefault(t *testing.T) {
	root := isolate(t)
	cfg := Default()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PrefetchDelay)
	assert.Equal(t, 200, cfg.CacheMaxEntries)
	assert.Equal(t, filepath.Join(root, ".cache", "opps"), cfg.CacheDir)
	assert.Equal(t, "auto", cfg.Format)
	assert.NotNil(t, cfg.Sources)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"base_url":          "https://opps.example.com",
		"page_size":         50,
		"fetch_timeout":     "3s",
		"prefetch_delay":    100,
		"cache_max_entries": 0,
		"cache_dir":         "/tmp/opps-cache",
		"format":            "json",
		"stats":             true,
		"verbose":           1,
	})

	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)

	assert.Equal(t, "https://opps.example.com", cfg.BaseURL)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PrefetchDelay)
	assert.Equal(t, 0, cfg.CacheMaxEntries)
	assert.Equal(t, "/tmp/opps-cache", cfg.CacheDir)
	assert.Equal(t, "json", cfg.Format)
	require.NotNil(t, cfg.Stats)
	assert.True(t, *cfg.Stats)
	require.NotNil(t, cfg.Verbose)
	assert.Equal(t, 1, *cfg.Verbose)

	assert.Equal(t, "global", cfg.Sources["base_url"])
	assert.Equal(t, "global", cfg.Sources["fetch_timeout"])
}

func TestLoadFromFileSkipsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not valid json"), 0o644))
	cfg := Default()
	loadFromFile(cfg, bad, SourceGlobal)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)

	loadFromFile(cfg, filepath.Join(dir, "missing.json"), SourceGlobal)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)

	partial := filepath.Join(dir, "partial.json")
	writeConfig(t, partial, map[string]any{
		"fetch_timeout": "soon",
		"page_size":     2.5,
		"verbose":       7,
	})
	loadFromFile(cfg, partial, SourceGlobal)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Nil(t, cfg.Verbose)
	assert.Empty(t, cfg.Sources)
}

func TestLocalConfigCannotSetBaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"base_url":  "https://evil.example.com",
		"page_size": 10,
	})

	cfg := Default()
	loadFromFile(cfg, path, SourceLocal)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.NotContains(t, cfg.Sources, "base_url")
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, "local", cfg.Sources["page_size"])
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OPPS_BASE_URL", "https://env.example.com")
	t.Setenv("OPPS_PAGE_SIZE", "15")
	t.Setenv("OPPS_FETCH_TIMEOUT", "2s")
	t.Setenv("OPPS_PREFETCH_DELAY", "0s")
	t.Setenv("OPPS_CACHE_MAX_ENTRIES", "50")
	t.Setenv("OPPS_CACHE_DIR", "/tmp/env-cache")
	t.Setenv("OPPS_FORMAT", "markdown")
	t.Setenv("OPPS_STATS", "yes")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, 15, cfg.PageSize)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, time.Duration(0), cfg.PrefetchDelay)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
	assert.Equal(t, "/tmp/env-cache", cfg.CacheDir)
	assert.Equal(t, "markdown", cfg.Format)
	assert.Nil(t, cfg.Stats, "unrecognized booleans are ignored")
	assert.Equal(t, "env", cfg.Sources["page_size"])
}

func TestParseEnvBool(t *testing.T) {
	tests := []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"1", true, true},
		{"false", false, true},
		{"0", false, true},
		{"yes", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseEnvBool(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	ApplyOverrides(cfg, FlagOverrides{BaseURL: "https://flag.example.com", PageSize: 5})

	assert.Equal(t, "https://flag.example.com", cfg.BaseURL)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, "flag", cfg.Sources["base_url"])

	ApplyOverrides(cfg, FlagOverrides{})
	assert.Equal(t, "https://flag.example.com", cfg.BaseURL, "empty overrides change nothing")
}

func TestLoadLayering(t *testing.T) {
	root := isolate(t)

	writeConfig(t, filepath.Join(root, ".config", "opps", "config.json"), map[string]any{
		"base_url":  "https://global.example.com",
		"page_size": 30,
		"format":    "json",
	})

	repo := filepath.Join(root, "work", "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))
	writeConfig(t, filepath.Join(repo, ".opps", "config.json"), map[string]any{
		"page_size": 40,
		"format":    "markdown",
	})
	sub := filepath.Join(repo, "sub")
	writeConfig(t, filepath.Join(sub, ".opps", "config.json"), map[string]any{
		"page_size": 45,
	})
	t.Chdir(sub)

	t.Setenv("OPPS_FORMAT", "quiet")

	cfg, err := Load(FlagOverrides{CacheDir: "/tmp/flag-cache"})
	require.NoError(t, err)

	assert.Equal(t, "https://global.example.com", cfg.BaseURL)
	assert.Equal(t, "global", cfg.Sources["base_url"])
	assert.Equal(t, 45, cfg.PageSize, "closer local config wins")
	assert.Equal(t, "local", cfg.Sources["page_size"])
	assert.Equal(t, "quiet", cfg.Format, "env beats local")
	assert.Equal(t, "/tmp/flag-cache", cfg.CacheDir)
	assert.Equal(t, "flag", cfg.Sources["cache_dir"])
}

func TestLoadOutsideRepoOnlyReadsWorkingDir(t *testing.T) {
	root := isolate(t)

	writeConfig(t, filepath.Join(root, "parent", ".opps", "config.json"), map[string]any{"page_size": 11})
	child := filepath.Join(root, "parent", "child")
	require.NoError(t, os.MkdirAll(child, 0o755))
	t.Chdir(child)

	cfg, err := Load(FlagOverrides{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
		o    FlagOverrides
	}{
		{"page size too large", nil, FlagOverrides{PageSize: 500}},
		{"page size negative", nil, FlagOverrides{PageSize: -1}},
		{"zero timeout", map[string]string{"OPPS_FETCH_TIMEOUT": "0s"}, FlagOverrides{}},
		{"negative delay", map[string]string{"OPPS_PREFETCH_DELAY": "-1s"}, FlagOverrides{}},
		{"unknown format", nil, FlagOverrides{Format: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.o)
			assert.Error(t, err)
		})
	}
}

func TestEntries(t *testing.T) {
	cfg := Default()
	ApplyOverrides(cfg, FlagOverrides{PageSize: 10})

	entries := cfg.Entries()
	byKey := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}

	assert.Equal(t, 10, byKey["page_size"].Value)
	assert.Equal(t, "flag", byKey["page_size"].Source)
	assert.Equal(t, "10s", byKey["fetch_timeout"].Value)
	assert.Equal(t, "default", byKey["base_url"].Source)
	assert.Equal(t, 0, byKey["verbose"].Value)
}

func TestGlobalConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/opps", GlobalConfigDir())
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/", "https://example.com"},
		{"https://example.com", "https://example.com"},
		{" https://example.com/api/ ", "https://example.com/api"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeBaseURL(tt.input))
	}
}

func TestNormalizeBaseURLAddsScheme(t *testing.T) {
	assert.Equal(t, "http://localhost:4000", NormalizeBaseURL("localhost:4000/"))
	assert.Equal(t, "https://opps.example.com", NormalizeBaseURL("opps.example.com"))
}
