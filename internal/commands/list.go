package commands

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/output"
	"github.com/oppfinder/opps/internal/search"
)

// NewListCmd creates the list command, a one-shot fetch of one page.
func NewListCmd() *cobra.Command {
	var ff filterFlags
	var prefetch bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List opportunities",
		Long: `Fetch one page of opportunities.

Filters combine: --url sets a starting point and the other flags override
its fields. Changing a filter without --page starts at page 1.`,
		Example: `  opps list --category environment --status open
  opps list --url "/opportunities?search=river&page=2"
  opps list --search tree --prefetch --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			fs, err := ff.resolve(cmd)
			if err != nil {
				return err
			}
			return runList(cmd, app, fs, prefetch)
		},
	}

	ff.register(cmd)
	cmd.Flags().BoolVar(&prefetch, "prefetch", false, "Also fetch the neighbouring pages and report them")

	return cmd
}

// pagination is the meta block for a fetched page.
type pagination struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	TotalCount int  `json:"total_count"`
	PageSize   int  `json:"page_size"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

func runList(cmd *cobra.Command, app *appctx.App, fs search.FilterState, prefetch bool) error {
	sess, err := app.NewSession(cmd.Context(), search.NewMemoryAddressBar(""), fs)
	if err != nil {
		return err
	}
	ctrl := sess.Controller

	drive(ctrl, ctrl.Load(cmd.Context()), prefetch)

	v := ctrl.View()
	if !v.HasEntry {
		if v.Err != nil {
			return output.FromFetchError(v.Err)
		}
		return fmt.Errorf("no result for %s", v.Key)
	}

	page := v.Entry.Page
	opts := []output.ResponseOption{
		output.WithSummary(listSummary(page)),
		output.WithContext("filter", v.Filter),
		output.WithMeta("key", v.Key.String()),
		output.WithMeta("url", v.URL),
		output.WithMeta("pagination", pagination{
			Page:       page.CurrentPage,
			TotalPages: page.TotalPages,
			TotalCount: page.TotalCount,
			PageSize:   page.PageSize,
			HasPrev:    page.HasPrev(),
			HasNext:    page.HasNext(),
		}),
		output.WithMeta("fetched_at", v.Entry.FetchedAt),
		output.WithBreadcrumbs(pageBreadcrumbs(v.Filter, page)...),
	}
	if prefetch {
		opts = append(opts, output.WithMeta("prefetched", prefetchedKeys(sess, v.Key)))
	}

	return app.OK(page.Items, opts...)
}

func listSummary(page search.ResultPage) string {
	if page.TotalCount == 0 {
		return "No opportunities match these filters"
	}
	noun := "results"
	if page.TotalCount == 1 {
		noun = "result"
	}
	return fmt.Sprintf("%s %s · page %d of %d",
		humanize.Comma(int64(page.TotalCount)), noun, page.CurrentPage, page.TotalPages)
}

func pageBreadcrumbs(fs search.FilterState, page search.ResultPage) []output.Breadcrumb {
	var crumbs []output.Breadcrumb
	if page.HasNext() {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "next",
			Cmd:         listCmd(fs.WithPage(page.CurrentPage + 1)),
			Description: "Next page",
		})
	}
	if page.HasPrev() {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "prev",
			Cmd:         listCmd(fs.WithPage(page.CurrentPage - 1)),
			Description: "Previous page",
		})
	}
	crumbs = append(crumbs, output.Breadcrumb{
		Action:      "save",
		Cmd:         fmt.Sprintf("opps views save <name> --url %q", listURL(fs)),
		Description: "Save this view",
	})
	return crumbs
}

// prefetchedKeys lists the network-fetched keys other than current.
func prefetchedKeys(sess *appctx.Session, current search.QueryKey) []string {
	var out []string
	for _, k := range sess.Store.Keys() {
		if k == current {
			continue
		}
		if e, ok := sess.Store.Get(k); ok && !e.Optimistic() {
			out = append(out, k.String())
		}
	}
	slices.Sort(out)
	return out
}
