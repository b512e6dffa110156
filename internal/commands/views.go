package commands

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/completion"
	"github.com/oppfinder/opps/internal/output"
	"github.com/oppfinder/opps/internal/tui"
	"github.com/oppfinder/opps/internal/tui/empty"
	"github.com/oppfinder/opps/internal/views"
)

// NewViewsCmd creates the views command for saved filter combinations.
func NewViewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "views",
		Aliases: []string{"view"},
		Short:   "Manage saved views",
		Long: `Save filter combinations under a name and reopen them later.

Views are stored in <cache_dir>/views.yaml. Names given to open are
matched exactly first, then case-insensitively, then fuzzily.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViewsList(cmd)
		},
	}

	cmd.AddCommand(
		newViewsListCmd(),
		newViewsSaveCmd(),
		newViewsRemoveCmd(),
		newViewsOpenCmd(),
	)
	return cmd
}

func viewStore(app *appctx.App) *views.Store {
	return views.NewStore(app.Config.CacheDir)
}

// viewError maps store lookup errors onto CLI errors.
func viewError(name string, err error) error {
	var amb *views.AmbiguousError
	switch {
	case errors.As(err, &amb):
		return output.ErrAmbiguous("view", amb.Matches)
	case errors.Is(err, views.ErrNotFound):
		return output.ErrNotFoundHint("view", name, "List saved views with: opps views list")
	}
	return err
}

func newViewsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved views",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViewsList(cmd)
		},
	}
}

func runViewsList(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	vs, err := viewStore(app).List()
	if err != nil {
		return err
	}

	var summary string
	switch len(vs) {
	case 0:
		m := empty.NoViews()
		return app.OK(vs,
			output.WithSummary(m.Title),
			output.WithBreadcrumbs(output.Breadcrumb{
				Action:      "save",
				Cmd:         m.Command,
				Description: m.Body,
			}),
		)
	case 1:
		summary = "1 saved view"
	default:
		summary = fmt.Sprintf("%d saved views", len(vs))
	}
	return app.OK(vs,
		output.WithSummary(summary),
		output.WithBreadcrumbs(
			output.Breadcrumb{
				Action:      "open",
				Cmd:         "opps views open <name>",
				Description: "Open a view",
			},
			output.Breadcrumb{
				Action:      "save",
				Cmd:         "opps views save <name> --category <c>",
				Description: "Save a view",
			},
		),
	)
}

func newViewsSaveCmd() *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a filter combination",
		Example: `  opps views save green --category environment --status open
  opps views save "river jobs" --url "/opportunities?search=river"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			fs, err := ff.resolve(cmd)
			if err != nil {
				return err
			}

			v, err := viewStore(app).Save(args[0], fs)
			if errors.Is(err, views.ErrInvalidName) {
				return output.ErrUsage(err.Error())
			}
			if err != nil {
				return err
			}

			return app.OK(v,
				output.WithSummary(fmt.Sprintf("Saved %q: %s", v.Name, describeFilter(fs))),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "open",
					Cmd:         fmt.Sprintf("opps views open %q", v.Name),
					Description: "Open this view",
				}),
			)
		},
	}

	ff.register(cmd)
	return cmd
}

func newViewsRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:               "rm <name>",
		Aliases:           []string{"remove", "delete"},
		Short:             "Remove a saved view",
		Long:              "Remove a saved view. The name must match exactly.",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.NewCompleter(nil).ViewCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if !force && app.IsInteractive() {
				ok, err := tui.Confirm(fmt.Sprintf("Remove view %q?", args[0]), false)
				if err != nil && !tui.IsAborted(err) {
					return err
				}
				if !ok {
					return output.ErrUsage("Cancelled")
				}
			}
			if err := viewStore(app).Remove(args[0]); err != nil {
				return viewError(args[0], err)
			}
			return app.OK(map[string]any{"name": args[0], "removed": true},
				output.WithSummary(fmt.Sprintf("Removed %q", args[0])),
			)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Remove without asking")
	return cmd
}

func newViewsOpenCmd() *cobra.Command {
	var prefetch bool

	cmd := &cobra.Command{
		Use:   "open [name]",
		Short: "List the opportunities in a saved view",
		Long: `List the opportunities in a saved view.

Without a name, pick one from a menu (interactive terminals only).`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completion.NewCompleter(nil).ViewCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			store := viewStore(app)

			var v views.View
			var err error
			if len(args) == 1 {
				v, err = store.Lookup(args[0])
				if err != nil {
					return viewError(args[0], err)
				}
			} else {
				if !app.IsInteractive() {
					return output.ErrUsageHint("View name required", "List saved views with: opps views list")
				}
				v, err = pickView(store)
				if err != nil {
					return err
				}
			}

			fs, err := v.Filter()
			if err != nil {
				return fmt.Errorf("view %q has an unreadable query: %w", v.Name, err)
			}
			return runList(cmd, app, fs.Normalize(), prefetch)
		},
	}

	cmd.Flags().BoolVar(&prefetch, "prefetch", false, "Also fetch the neighbouring pages and report them")
	return cmd
}

func pickView(store *views.Store) (views.View, error) {
	vs, err := store.List()
	if err != nil {
		return views.View{}, err
	}
	if len(vs) == 0 {
		return views.View{}, output.ErrUsageHint("No saved views", "Save one with: opps views save <name> --category <c>")
	}

	options := make([]tui.SelectOption, len(vs))
	for i, v := range vs {
		options[i] = tui.SelectOption{
			Value:       v.Name,
			Label:       v.Name,
			Description: fmt.Sprintf("%s · saved %s", v.Query, humanize.Time(v.SavedAt)),
		}
	}
	name, err := tui.Select("Open view", options)
	if tui.IsAborted(err) {
		return views.View{}, output.ErrUsage("Cancelled")
	}
	if err != nil {
		return views.View{}, err
	}
	for _, v := range vs {
		if v.Name == name {
			return v, nil
		}
	}
	return views.View{}, viewError(name, views.ErrNotFound)
}
