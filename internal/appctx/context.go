// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/oppfinder/opps/internal/config"
	"github.com/oppfinder/opps/internal/observability"
	"github.com/oppfinder/opps/internal/output"
	"github.com/oppfinder/opps/internal/remote"
	"github.com/oppfinder/opps/internal/resilience"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Output *output.Writer
	Logger *slog.Logger

	// Gate guards the search endpoint across invocations.
	Gate *resilience.Gate

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	remoteOnce sync.Once
	remote     *remote.Client
	remoteErr  error
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	JQ      string

	// Endpoint flags
	BaseURL  string
	PageSize int

	// Behavior flags
	Verbose  int // 0=off, 1=fetches, 2=fetches+requests (stacks with -v -v or -vv)
	Stats    bool
	NoStats  bool
	CacheDir string
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	// Collector always runs to gather stats; hooks control output verbosity.
	// Level 0 initially; ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(0, collector, observability.NewTraceWriter())

	store := resilience.NewStore(filepath.Join(cfg.CacheDir, resilience.DefaultDirName))
	gate := resilience.NewGateFromConfig(store, resilience.DefaultConfig())

	return &App{
		Config:    cfg,
		Logger:    slog.New(slog.DiscardHandler),
		Gate:      gate,
		Collector: collector,
		Hooks:     hooks,
		Output: output.New(output.Options{
			Format: formatFromConfig(cfg.Format),
			Writer: os.Stdout,
		}),
	}
}

func formatFromConfig(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	case "quiet":
		return output.FormatQuiet
	case "styled":
		return output.FormatStyled
	}
	return output.FormatAuto
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := a.Output.Format()

	// Order matters: specific modes first
	switch {
	case a.Flags.IDsOnly:
		format = output.FormatIDs
	case a.Flags.Count:
		format = output.FormatCount
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	case a.Flags.MD:
		format = output.FormatMarkdown
	}
	// --jq always filters the JSON envelope
	if a.Flags.JQ != "" {
		format = output.FormatJSON
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: os.Stdout,
		JQ:     a.Flags.JQ,
	})

	verboseLevel := resolveVerbosity(a.Flags.Verbose, os.Getenv("OPPS_DEBUG"))
	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}
	a.Logger = newLogger(verboseLevel, os.Stderr)
}

// resolveVerbosity combines the -v count with OPPS_DEBUG, which may be
// "1", "2", or "true" (full debug).
func resolveVerbosity(flag int, debugEnv string) int {
	level := flag
	if debugEnv != "" {
		if n, err := strconv.Atoi(debugEnv); err == nil {
			level = max(level, n)
		} else if strings.EqualFold(debugEnv, "true") {
			level = 2
		}
	}
	return min(max(level, 0), 2)
}

// newLogger returns a debug text logger on w when verbose, else a discard logger.
func newLogger(level int, w io.Writer) *slog.Logger {
	if level <= 0 {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// Remote returns the search endpoint client, creating it on first use.
// Every request passes through the Gate and the observability hooks.
func (a *App) Remote() (*remote.Client, error) {
	a.remoteOnce.Do(func() {
		a.remote, a.remoteErr = remote.New(a.Config.BaseURL,
			remote.WithGate(a.Gate),
			remote.WithHooks(a.Hooks),
		)
		if a.remoteErr != nil {
			a.remoteErr = output.ErrUsageHint(a.remoteErr.Error(),
				"Set base_url with --base-url, OPPS_BASE_URL, or "+filepath.Join(config.GlobalConfigDir(), "config.json"))
		}
	})
	return a.remote, a.remoteErr
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		stats := a.Collector.Summary()
		opts = append(opts, output.WithStats(&stats))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Machine-consumable modes keep stderr clean
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		stats := a.Collector.Summary()
		printStats(os.Stderr, &stats)
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// printStats outputs a compact stats line.
func printStats(w io.Writer, stats *observability.SessionMetrics) {
	if stats == nil {
		return
	}
	if parts := stats.FormatParts(); len(parts) > 0 {
		fmt.Fprintf(w, "\nStats: %s\n", strings.Join(parts, " | "))
	}
}

// IsInteractive returns true if the terminal supports interactive TUI.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return false
	}

	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
