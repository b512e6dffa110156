package cli

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/config"
	"github.com/oppfinder/opps/internal/output"
)

func TestResolvePreferences(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }
	intPtr := func(i int) *int { return &i }

	tests := []struct {
		name        string
		cfg         *config.Config
		setFlags    map[string]string // flags to Set (marks Changed)
		flags       appctx.GlobalFlags
		wantStats   bool
		wantVerbose int
	}{
		{
			name: "nothing set",
			cfg:  &config.Config{},
		},
		{
			name:      "config enables stats",
			cfg:       &config.Config{Stats: boolPtr(true)},
			wantStats: true,
		},
		{
			name:      "explicit --stats overrides config false",
			cfg:       &config.Config{Stats: boolPtr(false)},
			setFlags:  map[string]string{"stats": "true"},
			flags:     appctx.GlobalFlags{Stats: true},
			wantStats: true,
		},
		{
			name:      "explicit --no-stats overrides config true",
			cfg:       &config.Config{Stats: boolPtr(true)},
			setFlags:  map[string]string{"no-stats": "true"},
			flags:     appctx.GlobalFlags{NoStats: true},
			wantStats: false,
		},
		{
			name:      "--no-stats=false does not suppress config",
			cfg:       &config.Config{Stats: boolPtr(true)},
			setFlags:  map[string]string{"no-stats": "false"},
			wantStats: true,
		},
		{
			name:        "config verbose applies",
			cfg:         &config.Config{Verbose: intPtr(2)},
			wantVerbose: 2,
		},
		{
			name:        "explicit --verbose overrides config",
			cfg:         &config.Config{Verbose: intPtr(2)},
			setFlags:    map[string]string{"verbose": "1"},
			flags:       appctx.GlobalFlags{Verbose: 1},
			wantVerbose: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			var stats, noStats bool
			var verbose int
			cmd.PersistentFlags().BoolVar(&stats, "stats", false, "")
			cmd.PersistentFlags().BoolVar(&noStats, "no-stats", false, "")
			cmd.PersistentFlags().IntVar(&verbose, "verbose", 0, "")

			for f, v := range tt.setFlags {
				require.NoError(t, cmd.PersistentFlags().Set(f, v))
			}

			flags := tt.flags
			resolvePreferences(cmd, tt.cfg, &flags)

			assert.Equal(t, tt.wantStats, flags.Stats, "Stats")
			assert.Equal(t, tt.wantVerbose, flags.Verbose, "Verbose")
		})
	}
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in      string
		wantMsg string
		usage   bool
	}{
		{"flag needs an argument: --category", "--category requires a value", true},
		{"unknown flag: --nope", "Unknown option: --nope", true},
		{"unknown shorthand flag: 'z' in -z", "Unknown option: -z", true},
		{`unknown command "lsit" for "opps"`, `unknown command "lsit" for "opps"`, true},
		{`invalid argument "x" for "--page" flag`, `invalid argument "x" for "--page" flag`, true},
		{"accepts 1 arg(s), received 0", "accepts 1 arg(s), received 0", true},
		{"something else", "something else", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := transformCobraError(errors.New(tt.in))
			var oe *output.Error
			if tt.usage {
				require.True(t, errors.As(err, &oe))
				assert.Equal(t, output.CodeUsage, oe.Code)
				assert.Equal(t, tt.wantMsg, oe.Message)
			} else {
				assert.False(t, errors.As(err, &oe))
				assert.EqualError(t, err, tt.wantMsg)
			}
		})
	}
}

func TestRootSetsUpApp(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Setenv("OPPS_DEBUG", "")
	t.Chdir(dir)

	var got *appctx.App
	root := NewRootCmd()
	root.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			got = appctx.FromContext(cmd.Context())
			return nil
		},
	})
	root.SetArgs([]string{"probe", "--json", "--page-size", "7", "--base-url", "https://opps.example.com/", "-vv"})

	require.NoError(t, root.Execute())
	require.NotNil(t, got)
	assert.Equal(t, 7, got.Config.PageSize)
	assert.Equal(t, "https://opps.example.com", got.Config.BaseURL)
	assert.Equal(t, "flag", got.Config.Sources["base_url"])
	assert.Equal(t, output.FormatJSON, got.Output.Format())
	assert.Equal(t, 2, got.Hooks.Level())
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(dir)

	root := NewRootCmd()
	root.AddCommand(&cobra.Command{Use: "probe", RunE: func(*cobra.Command, []string) error { return nil }})
	root.SetArgs([]string{"probe", "--page-size", "1000"})

	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

func TestFallbackFormat(t *testing.T) {
	root := NewRootCmd()
	require.NoError(t, root.PersistentFlags().Set("jq", ".data"))
	assert.Equal(t, output.FormatJSON, fallbackFormat(root))

	root = NewRootCmd()
	require.NoError(t, root.PersistentFlags().Set("quiet", "true"))
	assert.Equal(t, output.FormatQuiet, fallbackFormat(root))

	assert.Equal(t, output.FormatAuto, fallbackFormat(NewRootCmd()))
}

func TestRootAcceptsUnderscoreFlags(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Chdir(dir)

	var got *appctx.App
	root := NewRootCmd()
	root.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			got = appctx.FromContext(cmd.Context())
			return nil
		},
	})
	root.SetArgs([]string{"probe", "--page_size", "9", "--cache_dir", dir + "/c"})

	require.NoError(t, root.Execute())
	require.NotNil(t, got)
	assert.Equal(t, 9, got.Config.PageSize)
	assert.Equal(t, dir+"/c", got.Config.CacheDir)
}

func TestNormalizeFlagName(t *testing.T) {
	assert.Equal(t, "page-size", string(normalizeFlagName(nil, "page_size")))
	assert.Equal(t, "json", string(normalizeFlagName(nil, "json")))
}
