// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oppfinder/opps/internal/hostutil"
)

// Defaults for tunables.
const (
	DefaultBaseURL         = "http://localhost:3000"
	DefaultPageSize        = 20
	DefaultFetchTimeout    = 10 * time.Second
	DefaultPrefetchDelay   = 250 * time.Millisecond
	DefaultCacheMaxEntries = 200
	MaxPageSize            = 100
)

// Config holds the resolved configuration.
type Config struct {
	// Endpoint settings
	BaseURL      string        `json:"base_url"`
	PageSize     int           `json:"page_size"`
	FetchTimeout time.Duration `json:"-"`

	// Cache settings
	PrefetchDelay   time.Duration `json:"-"`
	CacheMaxEntries int           `json:"cache_max_entries"`
	CacheDir        string        `json:"cache_dir"`

	// Output settings
	Format string `json:"format"`

	// Behavior preferences, overridable by flags
	Stats   *bool `json:"stats,omitempty"`
	Verbose *int  `json:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values. Zero values mean unset.
type FlagOverrides struct {
	BaseURL  string
	PageSize int
	CacheDir string
	Format   string
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	return &Config{
		BaseURL:         DefaultBaseURL,
		PageSize:        DefaultPageSize,
		FetchTimeout:    DefaultFetchTimeout,
		PrefetchDelay:   DefaultPrefetchDelay,
		CacheMaxEntries: DefaultCacheMaxEntries,
		CacheDir:        filepath.Join(cacheDir, "opps"),
		Format:          "auto",
		Sources:         make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > global > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, globalConfigPath(), SourceGlobal)
	for _, path := range localConfigPaths() {
		loadFromFile(cfg, path, SourceLocal)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (cfg *Config) Validate() error {
	if cfg.PageSize < 1 || cfg.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d (got %d from %s)", MaxPageSize, cfg.PageSize, cfg.source("page_size"))
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive (from %s)", cfg.source("fetch_timeout"))
	}
	if cfg.PrefetchDelay < 0 {
		return fmt.Errorf("prefetch_delay must not be negative (from %s)", cfg.source("prefetch_delay"))
	}
	if cfg.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must not be negative (from %s)", cfg.source("cache_max_entries"))
	}
	switch cfg.Format {
	case "auto", "json", "markdown", "md", "quiet", "styled":
	default:
		return fmt.Errorf("unknown format %q (from %s)", cfg.Format, cfg.source("format"))
	}
	return nil
}

func (cfg *Config) source(key string) string {
	if s, ok := cfg.Sources[key]; ok {
		return s
	}
	return string(SourceDefault)
}

// Entries returns every setting with its value and source, for display.
func (cfg *Config) Entries() []Entry {
	verbose := 0
	if cfg.Verbose != nil {
		verbose = *cfg.Verbose
	}
	stats := false
	if cfg.Stats != nil {
		stats = *cfg.Stats
	}
	values := []struct {
		key   string
		value any
	}{
		{"base_url", cfg.BaseURL},
		{"page_size", cfg.PageSize},
		{"fetch_timeout", cfg.FetchTimeout.String()},
		{"prefetch_delay", cfg.PrefetchDelay.String()},
		{"cache_max_entries", cfg.CacheMaxEntries},
		{"cache_dir", cfg.CacheDir},
		{"format", cfg.Format},
		{"stats", stats},
		{"verbose", verbose},
	}
	out := make([]Entry, len(values))
	for i, v := range values {
		out[i] = Entry{Key: v.key, Value: v.value, Source: cfg.source(v.key)}
	}
	return out
}

// Entry is one resolved setting.
type Entry struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	set := func(key string) { cfg.Sources[key] = string(source) }

	// base_url decides where requests go. A config file dropped into a
	// checkout must not be able to redirect them.
	if v, ok := fileCfg["base_url"].(string); ok && v != "" {
		if source == SourceLocal {
			fmt.Fprintf(os.Stderr, "warning: ignoring base_url %q from local config at %s (set it globally, via OPPS_BASE_URL, or with --base-url)\n", v, path)
		} else {
			cfg.BaseURL = NormalizeBaseURL(v)
			set("base_url")
		}
	}
	if v, ok := getInt(fileCfg, "page_size"); ok {
		cfg.PageSize = v
		set("page_size")
	}
	if v, ok := getDuration(fileCfg, "fetch_timeout", path); ok {
		cfg.FetchTimeout = v
		set("fetch_timeout")
	}
	if v, ok := getDuration(fileCfg, "prefetch_delay", path); ok {
		cfg.PrefetchDelay = v
		set("prefetch_delay")
	}
	if v, ok := getInt(fileCfg, "cache_max_entries"); ok {
		cfg.CacheMaxEntries = v
		set("cache_max_entries")
	}
	if v, ok := fileCfg["cache_dir"].(string); ok && v != "" {
		cfg.CacheDir = v
		set("cache_dir")
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		set("format")
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		set("stats")
	}
	if v, ok := getInt(fileCfg, "verbose"); ok && v >= 0 && v <= 2 {
		cfg.Verbose = &v
		set("verbose")
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	env := func(key string) string { return strings.TrimSpace(os.Getenv(key)) }
	set := func(key string) { cfg.Sources[key] = string(SourceEnv) }

	if v := env("OPPS_BASE_URL"); v != "" {
		cfg.BaseURL = NormalizeBaseURL(v)
		set("base_url")
	}
	if v := env("OPPS_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PageSize = n
			set("page_size")
		}
	}
	if v := env("OPPS_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FetchTimeout = d
			set("fetch_timeout")
		}
	}
	if v := env("OPPS_PREFETCH_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PrefetchDelay = d
			set("prefetch_delay")
		}
	}
	if v := env("OPPS_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheMaxEntries = n
			set("cache_max_entries")
		}
	}
	if v := env("OPPS_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
		set("cache_dir")
	}
	if v := env("OPPS_FORMAT"); v != "" {
		cfg.Format = v
		set("format")
	}
	if v := env("OPPS_STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			set("stats")
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Unrecognized values are ignored to preserve three-state pointer semantics.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// getInt extracts an integral JSON number or numeric string.
func getInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// getDuration extracts a Go duration string ("10s") or a number of
// milliseconds.
func getDuration(m map[string]any, key, path string) (time.Duration, bool) {
	switch v := m[key].(type) {
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: ignoring %s %q in %s: %v\n", key, v, path, err)
			return 0, false
		}
		return d, true
	case float64:
		return time.Duration(v) * time.Millisecond, true
	default:
		return 0, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.PageSize != 0 {
		cfg.PageSize = o.PageSize
		cfg.Sources["page_size"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// Path helpers

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "opps")
}

// localConfigPaths returns .opps/config.json paths from the enclosing git
// repository root down to the working directory, so closer files override.
// Outside a repository only the working directory is consulted.
func localConfigPaths() []string {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	boundary := repoRoot(dir)
	if boundary == "" {
		boundary = dir
	}

	var paths []string
	for {
		cfgPath := filepath.Join(dir, ".opps", "config.json")
		if _, err := os.Stat(cfgPath); err == nil {
			paths = append(paths, cfgPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir || dir == boundary {
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}
	return paths
}

// repoRoot returns the nearest ancestor of dir containing .git, or "".
// The walk never leaves $HOME.
func repoRoot(dir string) string {
	home, _ := os.UserHomeDir()
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = resolved
	}
	if home != "" && !isInsideDir(dir, home) {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir || dir == home {
			return ""
		}
		dir = parent
	}
}

// isInsideDir reports whether child is the same as or a subdirectory of parent.
func isInsideDir(child, parent string) bool {
	if child == parent {
		return true
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// NormalizeBaseURL ensures consistent URL format: a scheme and no
// trailing slash.
func NormalizeBaseURL(url string) string {
	return hostutil.Normalize(url)
}
