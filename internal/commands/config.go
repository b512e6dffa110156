package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/config"
	"github.com/oppfinder/opps/internal/output"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Show the effective opps configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > local > global > defaults

Config locations:
  - Global: ~/.config/opps/config.json
  - Local:  .opps/config.json (from the working directory up to the repo root)

base_url is only read from global config, env, or flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigShowCmd(), newConfigPathCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	return app.OK(app.Config.Entries(),
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(output.Breadcrumb{
			Action:      "path",
			Cmd:         "opps config path",
			Description: "Show config file locations",
		}),
	)
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			global := filepath.Join(config.GlobalConfigDir(), "config.json")
			return app.OK(map[string]string{
				"global":    global,
				"local":     filepath.Join(".opps", "config.json"),
				"cache_dir": app.Config.CacheDir,
			}, output.WithSummary(global))
		},
	}
}
