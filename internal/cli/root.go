// Package cli wires the root command, global flags, and error reporting.
package cli

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/commands"
	"github.com/oppfinder/opps/internal/config"
	"github.com/oppfinder/opps/internal/output"
	"github.com/oppfinder/opps/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "opps",
		Short:         "Browse and search volunteer and funding opportunities",
		Long:          "opps lists, filters, and pages through opportunities from a search endpoint, caching every page it has seen.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				BaseURL:  config.NormalizeBaseURL(flags.BaseURL),
				PageSize: flags.PageSize,
				CacheDir: flags.CacheDir,
			})
			if err != nil {
				return output.ErrUsageHint(err.Error(), "Inspect settings with: opps config show")
			}

			resolvePreferences(cmd, cfg, &flags)

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	cmd.SetVersionTemplate(version.Full() + "\n")

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	cmd.PersistentFlags().BoolVar(&flags.Count, "count", false, "Output only count")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter the JSON envelope with a jq expression")

	// Endpoint flags
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "base-url", "", "Search endpoint base URL")
	cmd.PersistentFlags().IntVar(&flags.PageSize, "page-size", 0, "Results per page (1-100)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for fetches, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	cmd.PersistentFlags().BoolVar(&flags.NoStats, "no-stats", false, "Hide session statistics")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")

	return cmd
}

// normalizeFlagName accepts config-file spellings of flags, so
// --page_size works like --page-size.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// resolvePreferences fills flags the user did not set from config.
// An explicitly set flag always wins.
func resolvePreferences(cmd *cobra.Command, cfg *config.Config, flags *appctx.GlobalFlags) {
	pf := cmd.PersistentFlags()

	if !pf.Changed("stats") {
		switch {
		case pf.Changed("no-stats") && flags.NoStats:
			flags.Stats = false
		case cfg.Stats != nil:
			flags.Stats = *cfg.Stats
		}
	}

	if !pf.Changed("verbose") && cfg.Verbose != nil {
		flags.Verbose = *cfg.Verbose
	}
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()

	cmd.AddCommand(commands.NewListCmd())
	cmd.AddCommand(commands.NewBrowseCmd())
	cmd.AddCommand(commands.NewURLCmd())
	cmd.AddCommand(commands.NewViewsCmd())
	cmd.AddCommand(commands.NewConfigCmd())

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()
	if err != nil {
		err = transformCobraError(err)
		apiErr := output.AsError(err)

		// Try to use app.Err() if app is available (for --stats support)
		if app := appctx.FromContext(executedCmd.Context()); app != nil {
			_ = app.Err(err)
			os.Exit(apiErr.ExitCode())
		}

		// Fallback: output error directly (app not available, e.g., during setup)
		writer := output.New(output.Options{
			Format: fallbackFormat(cmd),
			Writer: os.Stdout,
		})
		_ = writer.Err(err)

		os.Exit(apiErr.ExitCode())
	}
}

// fallbackFormat picks an error format from raw flags when setup failed
// before the app existed.
func fallbackFormat(cmd *cobra.Command) output.Format {
	pf := cmd.PersistentFlags()
	quiet, _ := pf.GetBool("quiet")
	idsOnly, _ := pf.GetBool("ids-only")
	count, _ := pf.GetBool("count")
	styled, _ := pf.GetBool("styled")
	md, _ := pf.GetBool("md")
	jsonFlag, _ := pf.GetBool("json")
	jq, _ := pf.GetString("jq")

	switch {
	case quiet:
		return output.FormatQuiet
	case idsOnly:
		return output.FormatIDs
	case count:
		return output.FormatCount
	case jsonFlag || jq != "":
		return output.FormatJSON
	case styled:
		return output.FormatStyled
	case md:
		return output.FormatMarkdown
	}
	return output.FormatAuto
}

var shorthandRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError rewrites cobra's parse errors as usage errors.
func transformCobraError(err error) error {
	msg := err.Error()

	// "flag needs an argument: --FLAG" → "--FLAG requires a value"
	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}

	// "unknown flag: --FLAG" → "Unknown option: --FLAG"
	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}

	// "unknown shorthand flag: 'X' in -X" → "Unknown option: -X"
	if matches := shorthandRe.FindStringSubmatch(msg); len(matches) > 1 {
		return output.ErrUsage("Unknown option: " + matches[1])
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: opps --help")
	}

	if strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "arg(s), received") ||
		strings.Contains(msg, "requires at least") {
		return output.ErrUsage(msg)
	}

	return err
}
