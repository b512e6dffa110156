// Package completion provides shell completion for saved view names and
// filter values.
package completion

import (
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/config"
	"github.com/oppfinder/opps/internal/search"
	"github.com/oppfinder/opps/internal/views"
)

// CacheDirFunc returns the cache directory to use for completion.
// Takes the command to allow checking both context and flags at completion time.
type CacheDirFunc func(cmd *cobra.Command) string

// DefaultCacheDirFunc returns the cache directory by checking (in order):
// 1. --cache-dir flag on the root command
// 2. App config from context (set by PersistentPreRunE)
// 3. OPPS_CACHE_DIR
// 4. The default cache directory
//
// During __complete PersistentPreRunE does not run, so cache_dir from
// config files is not seen. Only the flag and env var are.
func DefaultCacheDirFunc(cmd *cobra.Command) string {
	if root := cmd.Root(); root != nil {
		if flag := root.PersistentFlags().Lookup("cache-dir"); flag != nil && flag.Changed {
			return flag.Value.String()
		}
	}
	if app := appctx.FromContext(cmd.Context()); app != nil {
		return app.Config.CacheDir
	}
	if v := os.Getenv("OPPS_CACHE_DIR"); v != "" {
		return v
	}
	return config.Default().CacheDir
}

// Completer provides tab completion functions. It reads the saved views
// file directly and never contacts the search endpoint.
type Completer struct {
	getCacheDir CacheDirFunc
}

// NewCompleter creates a new Completer.
// If getCacheDir is nil, DefaultCacheDirFunc is used.
func NewCompleter(getCacheDir CacheDirFunc) *Completer {
	if getCacheDir == nil {
		getCacheDir = DefaultCacheDirFunc
	}
	return &Completer{getCacheDir: getCacheDir}
}

func (c *Completer) views(cmd *cobra.Command) []views.View {
	vs, err := views.NewStore(c.getCacheDir(cmd)).List()
	if err != nil {
		return nil
	}
	return vs
}

// ViewCompletion completes saved view names, most recently saved first.
// Only the first positional argument is completed.
func (c *Completer) ViewCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		vs := rankViews(c.views(cmd))
		needle := strings.ToLower(toComplete)
		var completions []cobra.Completion
		for _, v := range vs {
			if strings.Contains(strings.ToLower(v.Name), needle) {
				completions = append(completions, cobra.CompletionWithDesc(v.Name, v.Query))
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// FieldCompletion completes --category or --status with the values used
// in saved views.
func (c *Completer) FieldCompletion(field string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		var values []string
		for _, v := range c.views(cmd) {
			fs, err := v.Filter()
			if err != nil {
				continue
			}
			if s := fieldValue(fs, field); s != "" && strings.HasPrefix(strings.ToLower(s), strings.ToLower(toComplete)) {
				values = append(values, s)
			}
		}
		slices.Sort(values)
		values = slices.Compact(values)

		completions := make([]cobra.Completion, len(values))
		for i, s := range values {
			completions[i] = cobra.Completion(s)
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

func fieldValue(fs search.FilterState, field string) string {
	switch field {
	case "category":
		return fs.Category
	case "status":
		return fs.Status
	}
	return ""
}

// rankViews orders views newest first, then by name.
func rankViews(vs []views.View) []views.View {
	ranked := slices.Clone(vs)
	slices.SortStableFunc(ranked, func(a, b views.View) int {
		if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return ranked
}
